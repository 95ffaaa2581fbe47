// Package dispatch notifies blood banks and requesters of request lifecycle
// events. Delivery is best effort: callers publish after their transaction has
// committed and only log failures. Redelivery is the consumer's concern.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type EventType string

const (
	EventRequestSubmitted EventType = "request.submitted"
	EventRequestDecided   EventType = "request.decided"
	EventRequestCancelled EventType = "request.cancelled"
	EventRequestEscalated EventType = "request.escalated"
	EventUnitsExpired     EventType = "inventory.expired"
)

// Event is one lifecycle notification.
type Event struct {
	Type           EventType   `json:"type"`
	OrgID          uuid.UUID   `json:"org_id,omitempty"`
	RequestID      uuid.UUID   `json:"request_id,omitempty"`
	RequesterOrgID uuid.UUID   `json:"requester_org_id,omitempty"`
	TargetOrgIDs   []uuid.UUID `json:"target_org_ids,omitempty"`
	Status         string      `json:"status,omitempty"`
	Urgency        string      `json:"urgency,omitempty"`
	Count          int         `json:"count,omitempty"`
	ActorID        *uuid.UUID  `json:"actor_id,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// RedisPublisher appends events to a Redis stream, one entry per event with
// the type as a plain field for consumer-side filtering.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type": string(evt.Type),
			"data": string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// NewRedisClient parses a redis:// URL and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
