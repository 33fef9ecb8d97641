package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"traceport/pkg/platform/sentinel"
)

// KafkaStore publishes audit events to a Kafka topic. It implements Store so
// the publisher and worker stay agnostic of the sink. Reads are served by a
// downstream consumer, not by this store.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// NewKafkaStore builds a Kafka-backed audit sink.
func NewKafkaStore(brokers []string, topic string) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaStore{client: client, topic: topic}, nil
}

// kafkaEvent is the wire shape published to the topic.
type kafkaEvent struct {
	Timestamp          string         `json:"timestamp"`
	ActorID            string         `json:"actor_id,omitempty"`
	Action             string         `json:"action"`
	EntityID           string         `json:"entity_id"`
	Before             map[string]any `json:"before,omitempty"`
	After              map[string]any `json:"after,omitempty"`
	ComplianceRelevant bool           `json:"compliance_relevant"`
}

// Append publishes the event synchronously. Compliance-relevant events ride
// the same path as operational ones; the caller decides whether a failed
// append aborts its operation.
func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaEvent{
		Timestamp:          event.Timestamp.Format(time.RFC3339Nano),
		ActorID:            event.ActorID,
		Action:             event.Action,
		EntityID:           event.EntityID,
		Before:             event.Before,
		After:              event.After,
		ComplianceRelevant: event.ComplianceRelevant,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.EntityID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByEntity is not served from Kafka; the materialized view lives with the
// downstream consumer.
func (s *KafkaStore) ListByEntity(context.Context, string) ([]Event, error) {
	return nil, sentinel.ErrUnavailable
}

// Close flushes and releases the underlying client.
func (s *KafkaStore) Close() {
	s.client.Close()
}
