// Package notify publishes engine events to pluggable sinks.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// Sink delivers envelopes to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, env types.Envelope) error
	Close() error
}

// Dispatcher fans events out to every sink from a background worker so a slow
// sink never stalls settlement. Envelopes are dropped when the queue is full.
type Dispatcher struct {
	sinks          []Sink
	queue          chan types.Envelope
	publishTimeout time.Duration
	logger         *zap.Logger
	wg             sync.WaitGroup
	closeOnce      sync.Once
	mu             sync.RWMutex
	closed         bool
}

// Config holds dispatcher configuration.
type Config struct {
	Sinks          []Sink
	QueueSize      int
	PublishTimeout time.Duration
	Logger         *zap.Logger
}

// New creates a dispatcher. Call Start to begin delivery.
func New(cfg *Config) (*Dispatcher, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Dispatcher{
		sinks:          cfg.Sinks,
		queue:          make(chan types.Envelope, queueSize),
		publishTimeout: timeout,
		logger:         cfg.Logger,
	}, nil
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	d.logger.Info("notify-dispatcher-starting", zap.Strings("sinks", names))

	d.wg.Add(1)
	go d.run()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for env := range d.queue {
		QueueDepth.Set(float64(len(d.queue)))
		for _, s := range d.sinks {
			d.deliver(s, env)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, env types.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), d.publishTimeout)
	defer cancel()

	err := s.Publish(ctx, env)
	if err != nil {
		SinkErrorsTotal.WithLabelValues(s.Name()).Inc()
		d.logger.Warn("sink-publish-failed",
			zap.String("sink", s.Name()),
			zap.String("type", env.Type),
			zap.String("key", env.Key),
			zap.Error(err))
		return
	}
	PublishedTotal.WithLabelValues(s.Name(), env.Type).Inc()
}

func (d *Dispatcher) enqueue(env types.Envelope) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		DroppedTotal.WithLabelValues("closed").Inc()
		return
	}

	select {
	case d.queue <- env:
	default:
		DroppedTotal.WithLabelValues("queue_full").Inc()
		d.logger.Warn("notify-queue-full",
			zap.String("type", env.Type),
			zap.String("key", env.Key))
	}
}

func (d *Dispatcher) emit(eventType string, key string, player string, at time.Time, payload any) {
	env, err := types.NewEnvelope(eventType, key, player, at, payload)
	if err != nil {
		d.logger.Error("event-encode-failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	d.enqueue(env)
}

// WagerSettled publishes a settlement keyed by wager identity.
func (d *Dispatcher) WagerSettled(_ context.Context, ev types.WagerSettled) {
	d.emit(types.EventWagerSettled, ev.WagerID, ev.Player.Hex(), ev.SettledAt, ev)
}

// ParametersChanged publishes a parameter update.
func (d *Dispatcher) ParametersChanged(_ context.Context, ev types.ParametersChanged) {
	d.emit(types.EventParametersChanged, "parameters", "", ev.ChangedAt, ev)
}

// ReserveWithdrawn publishes an administrator withdrawal.
func (d *Dispatcher) ReserveWithdrawn(_ context.Context, ev types.ReserveWithdrawn) {
	d.emit(types.EventReserveWithdrawn, "reserve", "", ev.WithdrawnAt, ev)
}

// Close drains queued envelopes and closes every sink.
func (d *Dispatcher) Close() error {
	var errs []error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		d.wg.Wait()

		for _, s := range d.sinks {
			err := s.Close()
			if err != nil {
				errs = append(errs, err)
			}
		}
		d.logger.Info("notify-dispatcher-closed")
	})
	return errors.Join(errs...)
}
