// Package kafka publishes audit events to a Kafka topic. Kafka is the durable
// audit sink in multi-node deployments; the in-memory store covers tests and
// single-node runs.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"idem/pkg/platform/audit"
)

// Store appends audit events as JSON records keyed by identity id, so
// per-identity ordering is preserved within a partition.
type Store struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the audit topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic %q: %w", topic, err)
	}

	return &Store{client: client, topic: topic}, nil
}

// wireEvent is the JSON structure produced to the topic.
type wireEvent struct {
	Category           string `json:"category"`
	Timestamp          string `json:"timestamp"`
	IdentityID         string `json:"identityId,omitempty"`
	Action             string `json:"action"`
	Reason             string `json:"reason,omitempty"`
	CredentialID       string `json:"credentialId,omitempty"`
	MatchedCredentials int    `json:"matchedCredentials,omitempty"`
	RequestID          string `json:"requestId,omitempty"`
}

// Append produces the event synchronously so callers know it was accepted by
// the broker.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(wireEvent{
		Category:           string(event.Category),
		Timestamp:          event.Timestamp.Format(time.RFC3339Nano),
		IdentityID:         event.IdentityID,
		Action:             event.Action,
		Reason:             event.Reason,
		CredentialID:       event.CredentialID,
		MatchedCredentials: event.MatchedCredentials,
		RequestID:          event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.IdentityID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// List is unsupported: Kafka is a write-side sink here, consumers own reads.
func (s *Store) List(context.Context, string) ([]audit.Event, error) {
	return nil, errors.New("kafka audit store is write-only")
}

func (s *Store) Close() {
	s.client.Close()
}
