// Package sampler runs the periodic device read that feeds the reading cache
// and pushes an all-sensors envelope to subscribers on every tick.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	"github.com/pscheid92/navigator-gateway/internal/envelope"
	"github.com/pscheid92/navigator-gateway/internal/metrics"
	"github.com/pscheid92/navigator-gateway/internal/platform/correlation"
)

// MinADCInterval is the shortest interval that leaves time for a full ADC
// conversion. Faster loops skip the ADC and report zeros for it.
const MinADCInterval = 10 * time.Millisecond

type Device interface {
	ReadSnapshot(includeADC bool) (domain.SensorSnapshot, error)
}

type Store interface {
	Publish(snapshot domain.SensorSnapshot)
}

type Emitter interface {
	Emit(op envelope.Operation) envelope.Envelope
}

type Option func(*Sampler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) { s.logger = logger }
}

type Sampler struct {
	device   Device
	store    Store
	emitter  Emitter
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	healthy  atomic.Bool
}

func New(device Device, store Store, emitter Emitter, clock clockwork.Clock, interval time.Duration, opts ...Option) *Sampler {
	s := &Sampler{
		device:   device,
		store:    store,
		emitter:  emitter,
		clock:    clock,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthy.Store(true)
	return s
}

// Healthy is false once Run has stopped on a device failure.
func (s *Sampler) Healthy() bool {
	return s.healthy.Load()
}

// Run samples until ctx is cancelled, which returns nil. A device failure
// stops the loop and is returned; the caller decides whether the process
// survives it.
func (s *Sampler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sampler: interval must be positive, got %v", s.interval)
	}

	includeADC := s.interval >= MinADCInterval
	s.logger.Info("Sampler started", "interval", s.interval, "adc", includeADC)
	metrics.SamplerHealthy.Set(1)

	for {
		if ctx.Err() != nil {
			s.logger.Info("Sampler stopped")
			return nil
		}

		start := s.clock.Now()
		if err := s.tick(ctx, includeADC); err != nil {
			s.healthy.Store(false)
			metrics.SamplerHealthy.Set(0)
			metrics.DeviceErrorsTotal.WithLabelValues("sampler").Inc()
			s.logger.Error("Sampler stopped on device failure", "error", err)
			return fmt.Errorf("sampler: %w", err)
		}
		elapsed := s.clock.Since(start)
		metrics.SamplerTicksTotal.Inc()
		metrics.SamplerTickDuration.Observe(elapsed.Seconds())

		if elapsed > s.interval {
			metrics.SamplerOverrunsTotal.Inc()
			s.logger.Warn("Sampling overran interval, skipping sleep",
				"elapsed", elapsed,
				"interval", s.interval,
			)
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Sampler stopped")
			return nil
		case <-s.clock.After(s.interval - elapsed):
		}
	}
}

func (s *Sampler) tick(ctx context.Context, includeADC bool) error {
	snapshot, err := s.device.ReadSnapshot(includeADC)
	if err != nil {
		return err
	}
	s.store.Publish(snapshot)

	env := s.emitter.Emit(envelope.SensorReading{Sensor: domain.SensorAll, Snapshot: snapshot})
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		tickCtx := correlation.WithID(ctx, correlation.NewID())
		s.logger.DebugContext(tickCtx, "Sampled", "timestamp", env.Timestamp)
	}
	return nil
}
