package websocket

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the configuration for exponential backoff reconnection.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = 20%
}

// Backoff retries a connect function with exponential backoff and jitter.
type Backoff struct {
	config  ReconnectConfig
	logger  *zap.Logger
	mu      sync.Mutex
	current time.Duration
}

// NewBackoff creates a Backoff starting at cfg.InitialDelay.
func NewBackoff(cfg ReconnectConfig, logger *zap.Logger) *Backoff {
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &Backoff{
		config:  cfg,
		logger:  logger,
		current: cfg.InitialDelay,
	}
}

// Retry waits, calls connect, and repeats with growing delays until connect
// succeeds or ctx is done.
func (b *Backoff) Retry(ctx context.Context, connect func(context.Context) error) error {
	for {
		delay := b.Next()
		b.logger.Info("stream-reconnect-scheduled", zap.Duration("backoff", delay))
		ReconnectAttemptsTotal.Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err := connect(ctx)
		if err == nil {
			b.Reset()
			return nil
		}

		b.logger.Warn("stream-reconnect-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()
		b.grow()
	}
}

// Reset restores the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.config.InitialDelay
}

// Next returns the current delay with jitter applied.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	jitter := rand.Float64() * b.config.JitterPercent //nolint:gosec // jitter only
	return time.Duration(float64(b.current) * (1.0 + jitter))
}

func (b *Backoff) grow() {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := time.Duration(float64(b.current) * b.config.BackoffMultiplier)
	if next > b.config.MaxDelay {
		next = b.config.MaxDelay
	}
	b.current = next
}
