// Package datalog appends the cached sensor snapshot to a CSV file at a fixed
// interval.
package datalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	"github.com/pscheid92/navigator-gateway/internal/metrics"
)

const (
	// DefaultStartDelay gives the sampler time to publish its first snapshot.
	DefaultStartDelay = 500 * time.Millisecond

	timeLayout = "2006-01-02 15:04:05"
)

var header = []string{
	"Time",
	"ADC_Ch1", "ADC_Ch2", "ADC_Ch3", "ADC_Ch4",
	"Temperature", "Pressure",
	"Acc_X", "Acc_Y", "Acc_Z",
	"Mag_X", "Mag_Y", "Mag_Z",
	"Gyro_X", "Gyro_Y", "Gyro_Z",
}

type Source interface {
	Read() (domain.SensorSnapshot, bool)
}

type Option func(*Logger)

func WithStartDelay(d time.Duration) Option {
	return func(l *Logger) { l.startDelay = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

type Logger struct {
	path       string
	interval   time.Duration
	source     Source
	clock      clockwork.Clock
	startDelay time.Duration
	logger     *slog.Logger
}

func New(path string, interval time.Duration, source Source, clock clockwork.Clock, opts ...Option) *Logger {
	l := &Logger{
		path:       path,
		interval:   interval,
		source:     source,
		clock:      clock,
		startDelay: DefaultStartDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run appends one row per interval until ctx is cancelled. Ticks before the
// first published snapshot are skipped. A write failure ends Run.
func (l *Logger) Run(ctx context.Context) error {
	if l.interval <= 0 {
		return fmt.Errorf("datalog: interval must be positive, got %v", l.interval)
	}

	file, err := l.open()
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	l.logger.Info("Data logger started", "path", l.path, "interval", l.interval)

	select {
	case <-ctx.Done():
		return nil
	case <-l.clock.After(l.startDelay):
	}

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Data logger stopped")
			return nil
		case <-ticker.Chan():
			if err := l.logOnce(w); err != nil {
				return err
			}
		}
	}
}

func (l *Logger) logOnce(w *csv.Writer) error {
	snapshot, ok := l.source.Read()
	if !ok {
		return nil
	}
	if err := writeRow(w, l.clock.Now(), snapshot); err != nil {
		metrics.DatalogErrorsTotal.Inc()
		return fmt.Errorf("datalog: write %s: %w", l.path, err)
	}
	metrics.DatalogRowsTotal.Inc()
	return nil
}

// open appends to path, writing the header when the file is new or empty.
func (l *Logger) open() (*os.File, error) {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("datalog: open %s: %w", l.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("datalog: stat %s: %w", l.path, err)
	}
	if info.Size() > 0 {
		return file, nil
	}

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("datalog: write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("datalog: write header: %w", err)
	}
	return file, nil
}

func writeRow(w *csv.Writer, now time.Time, s domain.SensorSnapshot) error {
	row := make([]string, 0, len(header))
	row = append(row, now.Local().Format(timeLayout))
	for _, v := range s.ADC.Channel {
		row = append(row, formatFloat(v))
	}
	row = append(row, formatFloat(s.Temperature), formatFloat(s.Pressure))
	for _, vec := range []domain.Vector3{s.Accelerometer, s.Magnetometer, s.Gyroscope} {
		row = append(row, formatFloat(vec.X), formatFloat(vec.Y), formatFloat(vec.Z))
	}

	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
