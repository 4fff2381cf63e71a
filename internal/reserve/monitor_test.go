package reserve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/coinflip/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	mu     sync.Mutex
	status settlement.ReserveStatus
	err    error
	calls  int
}

func (f *fakeSource) Reserve(context.Context) (settlement.ReserveStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.status, f.err
}

func (f *fakeSource) set(available uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = settlement.ReserveStatus{Balance: available + 100, Encumbered: 100, Available: available, Pending: 1}
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestMonitor(t *testing.T, src Source) *Monitor {
	t.Helper()
	m, err := New(&Config{
		CheckInterval:   10 * time.Millisecond,
		LowWatermark:    1_000,
		HysteresisRatio: 1.5,
		Source:          src,
		Logger:          zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)
	src := &fakeSource{}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil-config", cfg: nil, wantErr: "config cannot be nil"},
		{name: "nil-source", cfg: &Config{CheckInterval: time.Second, HysteresisRatio: 1, Logger: logger}, wantErr: "reserve source cannot be nil"},
		{name: "nil-logger", cfg: &Config{CheckInterval: time.Second, HysteresisRatio: 1, Source: src}, wantErr: "logger cannot be nil"},
		{name: "zero-interval", cfg: &Config{HysteresisRatio: 1, Source: src, Logger: logger}, wantErr: "check interval must be positive"},
		{name: "low-ratio", cfg: &Config{CheckInterval: time.Second, HysteresisRatio: 0.5, Source: src, Logger: logger}, wantErr: "hysteresis ratio must be >= 1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestMonitor_Hysteresis(t *testing.T) {
	src := &fakeSource{}
	m := newTestMonitor(t, src)
	ctx := context.Background()
	assert.True(t, m.Healthy())

	steps := []struct {
		available uint64
		want      bool
	}{
		{available: 5_000, want: true},
		{available: 999, want: false},  // below watermark
		{available: 1_200, want: false}, // above watermark, below 1500
		{available: 1_500, want: true},  // recovered
		{available: 1_000, want: true},  // at watermark is not low
		{available: 0, want: false},
	}

	for _, step := range steps {
		src.set(step.available)
		require.NoError(t, m.Check(ctx))
		assert.Equal(t, step.want, m.Healthy(), "available=%d", step.available)
	}

	status := m.Status()
	assert.False(t, status.Healthy)
	assert.Equal(t, uint64(1_500), status.RecoverAt)
	assert.Equal(t, uint64(100), status.Encumbered)
	assert.Equal(t, 1, status.Pending)
}

func TestMonitor_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("rpc down")}
	m := newTestMonitor(t, src)

	err := m.Check(context.Background())
	require.ErrorContains(t, err, "rpc down")
	assert.True(t, m.Healthy(), "errors do not flip the flag")
	assert.Equal(t, "rpc down", m.Status().LastError)
}

func TestMonitor_StartStops(t *testing.T) {
	src := &fakeSource{}
	src.set(10_000)
	m := newTestMonitor(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	require.Eventually(t, func() bool { return src.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.False(t, m.Status().LastCheck.IsZero())
}
