package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TopicAdmin is the subset of *kadm.Client EnsureTopic uses.
type TopicAdmin interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// NewTopicAdmin connects an admin client to brokers. Close it when done.
func NewTopicAdmin(brokers []string) (*kadm.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("events: kafka brokers are required")
	}
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...), kgo.ClientID("horizon-admin"))
	if err != nil {
		return nil, fmt.Errorf("events: create kafka admin client: %w", err)
	}
	return kadm.NewClient(client), nil
}

// EnsureTopic creates topic unless it already exists. Events are keyed by
// recording, so compaction is never enabled on it.
func EnsureTopic(ctx context.Context, admin TopicAdmin, topic string, partitions int32, replicationFactor int16) (created bool, err error) {
	cleanup := "delete"
	resps, err := admin.CreateTopics(ctx, partitions, replicationFactor, map[string]*string{"cleanup.policy": &cleanup}, topic)
	if err != nil {
		return false, fmt.Errorf("events: create topic %s: %w", topic, err)
	}
	resp, ok := resps[topic]
	if !ok {
		return false, fmt.Errorf("events: create topic %s: no response", topic)
	}
	switch {
	case resp.Err == nil:
		return true, nil
	case errors.Is(resp.Err, kerr.TopicAlreadyExists):
		return false, nil
	default:
		return false, fmt.Errorf("events: create topic %s: %w", topic, resp.Err)
	}
}
