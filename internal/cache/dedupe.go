package cache

import (
	"context"
	"fmt"
	"time"
)

// DefaultEventTTL covers Stripe's retry window.
const DefaultEventTTL = 72 * time.Hour

// EventDeduper records which webhook events were already handled.
type EventDeduper interface {
	// Claim reports true when the caller is the first to see eventID.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets a claim so a retried delivery is processed again.
	Release(ctx context.Context, eventID string) error
}

type redisDeduper struct {
	client kv
	ttl    time.Duration
}

// NewRedisDeduper builds a deduper on a Redis client. A zero ttl uses DefaultEventTTL.
func NewRedisDeduper(client kv, ttl time.Duration) EventDeduper {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &redisDeduper{client: client, ttl: ttl}
}

func eventKey(eventID string) string {
	return "stripe:event:" + eventID
}

func (d *redisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, eventKey(eventID), time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (d *redisDeduper) Release(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, eventKey(eventID)).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

type nopDeduper struct{}

// NopDeduper claims every event. Idempotent grants still protect the ledger.
func NopDeduper() EventDeduper { return nopDeduper{} }

func (nopDeduper) Claim(context.Context, string) (bool, error) { return true, nil }
func (nopDeduper) Release(context.Context, string) error        { return nil }
