package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "genesis:events:" // Pub/Sub channel per project: genesis:events:{project_id}

// Publisher fans out workflow events to observers of a project.
type Publisher interface {
	Publish(ctx context.Context, projectID string, ev Event) error
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }

// Bus publishes and subscribes to project events over Redis Pub/Sub.
type Bus struct {
	client *redis.Client
}

func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

func (b *Bus) Publish(ctx context.Context, projectID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(projectID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscription delivers the events of one project until Close is called.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe blocks until Redis confirms the subscription, so no event published
// after it returns is missed.
func (b *Bus) Subscribe(ctx context.Context, projectID string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, Channel(projectID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

func (s *Subscription) pump() {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("[warn] events: dropping malformed payload on %s: %v", msg.Channel, err)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.pubsub.Close()
}

func Channel(projectID string) string { return channelPrefix + projectID }
