// Package reserve watches the house reserve and reports when free funds run low.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mselser95/coinflip/internal/settlement"
	"go.uber.org/zap"
)

// Source reports the reserve. settlement.Engine satisfies it.
type Source interface {
	Reserve(ctx context.Context) (settlement.ReserveStatus, error)
}

// Monitor polls the reserve and tracks a healthy flag with hysteresis: it turns
// unhealthy when available funds drop below LowWatermark and healthy again once
// they reach LowWatermark*HysteresisRatio. It never blocks settlement.
type Monitor struct {
	healthy atomic.Bool

	checkInterval   time.Duration
	source          Source
	lowWatermark    uint64
	recoverAt       uint64
	hysteresisRatio float64
	logger          *zap.Logger

	mu        sync.RWMutex
	last      settlement.ReserveStatus
	lastCheck time.Time
	lastErr   error
}

// Config holds monitor configuration.
type Config struct {
	CheckInterval   time.Duration
	LowWatermark    uint64
	HysteresisRatio float64
	Source          Source
	Logger          *zap.Logger
}

// Status is a point-in-time view for HTTP endpoints.
type Status struct {
	Healthy      bool      `json:"healthy"`
	Balance      uint64    `json:"balance"`
	Encumbered   uint64    `json:"encumbered"`
	Available    uint64    `json:"available"`
	Pending      int       `json:"pending"`
	LowWatermark uint64    `json:"low_watermark"`
	RecoverAt    uint64    `json:"recover_at"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
}

// New creates a monitor that starts healthy.
func New(cfg *Config) (*Monitor, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Source == nil {
		return nil, errors.New("reserve source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, errors.New("check interval must be positive")
	}
	if cfg.HysteresisRatio < 1.0 {
		return nil, errors.New("hysteresis ratio must be >= 1.0")
	}

	m := &Monitor{
		checkInterval:   cfg.CheckInterval,
		source:          cfg.Source,
		lowWatermark:    cfg.LowWatermark,
		recoverAt:       uint64(float64(cfg.LowWatermark) * cfg.HysteresisRatio),
		hysteresisRatio: cfg.HysteresisRatio,
		logger:          cfg.Logger,
	}
	m.healthy.Store(true)

	ReserveHealthy.Set(1)
	ReserveLowWatermark.Set(float64(m.lowWatermark))

	return m, nil
}

// Healthy reports the current flag without locking.
func (m *Monitor) Healthy() bool {
	return m.healthy.Load()
}

// Check reads the reserve once and applies the hysteresis transition.
func (m *Monitor) Check(ctx context.Context) error {
	start := time.Now()
	defer func() {
		ReserveCheckDuration.Observe(time.Since(start).Seconds())
	}()

	status, err := m.source.Reserve(ctx)

	m.mu.Lock()
	m.lastCheck = time.Now()
	m.lastErr = err
	if err == nil {
		m.last = status
	}
	m.mu.Unlock()

	if err != nil {
		ReserveCheckErrorsTotal.Inc()
		return fmt.Errorf("read reserve: %w", err)
	}

	ReserveBalance.Set(float64(status.Balance))
	ReserveAvailable.Set(float64(status.Available))

	wasHealthy := m.healthy.Load()
	switch {
	case wasHealthy && status.Available < m.lowWatermark:
		m.healthy.Store(false)
		ReserveHealthy.Set(0)
		ReserveStateChangesTotal.Inc()
		m.logger.Warn("reserve-low",
			zap.Uint64("available", status.Available),
			zap.Uint64("encumbered", status.Encumbered),
			zap.Int("pending", status.Pending),
			zap.Uint64("low-watermark", m.lowWatermark))

	case !wasHealthy && status.Available >= m.recoverAt:
		m.healthy.Store(true)
		ReserveHealthy.Set(1)
		ReserveStateChangesTotal.Inc()
		m.logger.Info("reserve-recovered",
			zap.Uint64("available", status.Available),
			zap.Uint64("recover-at", m.recoverAt))

	default:
		m.logger.Debug("reserve-checked",
			zap.Uint64("balance", status.Balance),
			zap.Uint64("available", status.Available),
			zap.Int("pending", status.Pending),
			zap.Bool("healthy", wasHealthy))
	}

	return nil
}

// Start checks immediately and then on every interval until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("reserve-monitor-started",
		zap.Duration("check-interval", m.checkInterval),
		zap.Uint64("low-watermark", m.lowWatermark),
		zap.Float64("hysteresis-ratio", m.hysteresisRatio))

	err := m.Check(ctx)
	if err != nil {
		m.logger.Error("initial-reserve-check-failed", zap.Error(err))
	}

	go m.monitorLoop(ctx)
}

func (m *Monitor) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("reserve-monitor-stopped")
			return
		case <-ticker.C:
			err := m.Check(ctx)
			if err != nil {
				m.logger.Error("reserve-check-error", zap.Error(err))
			}
		}
	}
}

// Status returns the last observation.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		Healthy:      m.healthy.Load(),
		Balance:      m.last.Balance,
		Encumbered:   m.last.Encumbered,
		Available:    m.last.Available,
		Pending:      m.last.Pending,
		LowWatermark: m.lowWatermark,
		RecoverAt:    m.recoverAt,
		LastCheck:    m.lastCheck,
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}
