package notify

import (
	"context"

	"github.com/mselser95/coinflip/pkg/types"
	"go.uber.org/zap"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Name() string { return "log" }

// Publish logs the envelope.
func (l *LogSink) Publish(_ context.Context, env types.Envelope) error {
	l.logger.Info("event-published",
		zap.String("type", env.Type),
		zap.String("key", env.Key),
		zap.String("player", env.Player),
		zap.ByteString("data", env.Data))
	return nil
}

func (l *LogSink) Close() error { return nil }
