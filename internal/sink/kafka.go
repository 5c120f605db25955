package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Hou-dini/ingestion-engine/internal/config"
	"github.com/Hou-dini/ingestion-engine/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each artifact as one message keyed by the artifact
// key. It is write-only.
type KafkaSink struct {
	topic  string
	writer messageWriter
}

// NewKafka creates a synchronous producer for cfg.Topic.
func NewKafka(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &KafkaSink{topic: cfg.Topic, writer: w}, nil
}

func (k *KafkaSink) Save(ctx context.Context, posts []model.Post, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	body, err := model.EncodePosts(posts)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(jsonContentType)},
			{Key: "post-count", Value: []byte(strconv.Itoa(len(posts)))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", key, k.topic, err)
	}
	return nil
}

func (k *KafkaSink) Load(_ context.Context, key string) ([]model.Post, error) {
	return nil, fmt.Errorf("load %s: %w", key, ErrLoadUnsupported)
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
