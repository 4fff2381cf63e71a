package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each envelope as one message keyed by Envelope.Key, so all
// events of one wager land on one partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// KafkaConfig holds Kafka producer configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Logger  *zap.Logger
}

// NewKafkaSink creates a producer for cfg.Topic.
func NewKafkaSink(cfg *KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic cannot be empty")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	cfg.Logger.Info("kafka-sink-initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return newKafkaSink(w, cfg.Topic, cfg.Logger), nil
}

func newKafkaSink(w messageWriter, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic, logger: logger}
}

func (k *KafkaSink) Name() string { return "kafka" }

// Publish writes env to the topic.
func (k *KafkaSink) Publish(ctx context.Context, env types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.Key),
		Value: payload,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(env.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	k.logger.Info("closing-kafka-sink")
	return k.writer.Close()
}
