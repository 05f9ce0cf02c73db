package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the subset of *kgo.Client the Kafka sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaConfig configures NewKafkaSink.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string

	// DeliveryTimeout bounds a produce including retries. Zero uses
	// DefaultDeliveryTimeout.
	DeliveryTimeout time.Duration
}

// DefaultDeliveryTimeout is the produce bound when none is configured.
const DefaultDeliveryTimeout = 5 * time.Second

// KafkaSink produces events as JSON records keyed by recording ID.
type KafkaSink struct {
	producer Producer
	topic    string
}

var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink connects a franz-go client to the configured brokers.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("events: kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("events: kafka topic is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "horizon-retention"
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(timeout),
		kgo.ProduceRequestTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("events: create kafka client: %w", err)
	}
	return NewKafkaSinkWithProducer(client, cfg.Topic), nil
}

// NewKafkaSinkWithProducer builds a sink over an existing producer.
func NewKafkaSinkWithProducer(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, e Event) error {
	value, err := e.Marshal()
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   e.Key(),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("events: produce %s to %s: %w", e.Type, s.topic, err)
	}
	return nil
}

// Close shuts down the producer.
func (s *KafkaSink) Close() error {
	s.producer.Close()
	return nil
}
