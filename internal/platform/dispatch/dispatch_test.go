package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisPublisher_Publish(t *testing.T) {
	_, client := setupTestRedis(t)
	pub := NewRedisPublisher(client, "bloodconnect:events", 0)
	ctx := context.Background()

	evt := Event{
		Type:           EventRequestSubmitted,
		RequestID:      uuid.New(),
		RequesterOrgID: uuid.New(),
		Status:         "Pending",
		Urgency:        "Critical",
		OccurredAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(ctx, evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs, err := client.XRange(ctx, "bloodconnect:events", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(msgs))
	}
	if msgs[0].Values["type"] != string(EventRequestSubmitted) {
		t.Errorf("unexpected type field %v", msgs[0].Values["type"])
	}

	var got Event
	if err := json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got.RequestID != evt.RequestID || got.Urgency != "Critical" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	pub := NewRedisPublisher(client, "bloodconnect:events", 1000)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pub.Publish(ctx, Event{Type: EventRequestDecided}); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	client.Close()

	if _, err := NewRedisClient(context.Background(), "not a url"); err == nil {
		t.Error("expected parse error")
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
