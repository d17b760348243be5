package datalog

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu       sync.Mutex
	snapshot domain.SensorSnapshot
	ok       bool
}

func (s *stubSource) Read() (domain.SensorSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.ok
}

func (s *stubSource) set(snapshot domain.SensorSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	s.ok = true
}

func lineCount(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1
	}
	return strings.Count(string(data), "\n")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

// runLogger starts l and returns a stop function that waits for Run to return.
func runLogger(t *testing.T, l *Logger) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return func() error {
		cancel()
		return <-done
	}
}

func TestLogger_WritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	clock := clockwork.NewFakeClock()
	source := &stubSource{}
	source.set(domain.SensorSnapshot{
		Temperature:   21.5,
		Pressure:      101.25,
		Accelerometer: domain.Vector3{X: 1, Y: 2, Z: 3},
		Magnetometer:  domain.Vector3{X: 4, Y: 5, Z: 6},
		Gyroscope:     domain.Vector3{X: 7, Y: 8, Z: 9},
		ADC:           domain.ADC{Channel: [4]float32{0.5, 1, 1.5, 2}},
	})

	l := New(path, time.Second, source, clock)
	stop := runLogger(t, l)

	ctx := context.Background()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(DefaultStartDelay)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return lineCount(path) == 2 }, time.Second, 5*time.Millisecond)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return lineCount(path) == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, stop())

	records := readCSV(t, path)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"0.5", "1", "1.5", "2", "21.5", "101.25", "1", "2", "3", "4", "5", "6", "7", "8", "9"}, records[1][1:])
	_, err := time.ParseInLocation(timeLayout, records[1][0], time.Local)
	assert.NoError(t, err)
}

func TestLogger_AppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(header, ",")+"\nold,row\n"), 0o644))

	l := New(path, time.Second, &stubSource{}, clockwork.NewFakeClock())
	file, err := l.open()
	require.NoError(t, err)
	require.NoError(t, file.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "Time,"))
}

func TestLogger_HeaderForEmptyExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	l := New(path, time.Second, &stubSource{}, clockwork.NewFakeClock())
	file, err := l.open()
	require.NoError(t, err)
	require.NoError(t, file.Close())

	assert.Equal(t, [][]string{header}, readCSV(t, path))
}

func TestLogger_SkipsUntilFirstSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	source := &stubSource{}
	l := New(path, time.Second, source, clockwork.NewFakeClock())

	file, err := l.open()
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	w := csv.NewWriter(file)

	require.NoError(t, l.logOnce(w))
	assert.Len(t, readCSV(t, path), 1)

	source.set(domain.SensorSnapshot{Temperature: 1})
	require.NoError(t, l.logOnce(w))
	assert.Len(t, readCSV(t, path), 2)
}

func TestLogger_OpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "data.csv")

	err := New(path, time.Second, &stubSource{}, clockwork.NewFakeClock()).Run(context.Background())

	assert.Error(t, err)
}

func TestLogger_RejectsNonPositiveInterval(t *testing.T) {
	err := New("unused.csv", 0, &stubSource{}, clockwork.NewFakeClock()).Run(context.Background())

	assert.Error(t, err)
}
