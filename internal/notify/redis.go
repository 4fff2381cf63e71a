package notify

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisSink broadcasts envelopes on a Redis pub/sub channel.
type RedisSink struct {
	client  publisher
	channel string
	logger  *zap.Logger
}

// RedisConfig holds Redis pub/sub configuration.
type RedisConfig struct {
	Addr    string
	Channel string
	Logger  *zap.Logger
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg *RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if cfg.Channel == "" {
		return nil, errors.New("redis channel cannot be empty")
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	cfg.Logger.Info("redis-sink-connected",
		zap.String("addr", cfg.Addr),
		zap.String("channel", cfg.Channel))

	return newRedisSink(client, cfg.Channel, cfg.Logger), nil
}

func newRedisSink(client publisher, channel string, logger *zap.Logger) *RedisSink {
	return &RedisSink{client: client, channel: channel, logger: logger}
}

func (r *RedisSink) Name() string { return "redis" }

// Publish sends env to the channel.
func (r *RedisSink) Publish(ctx context.Context, env types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}

	r.logger.Debug("redis-event-published",
		zap.String("type", env.Type),
		zap.Int64("receivers", receivers))
	return nil
}

// Close closes the Redis client.
func (r *RedisSink) Close() error {
	r.logger.Info("closing-redis-sink")
	return r.client.Close()
}
