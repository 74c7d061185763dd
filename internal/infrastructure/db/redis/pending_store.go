package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskflow/portal/internal/core/domain"
)

const defaultPendingTTL = 7 * 24 * time.Hour

// PendingStore keeps the pending-approval marker in a key space disjoint from
// the session mirror, so clearing one can never clear the other.
// Key format: portal:pending:<visitor_id>
type PendingStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPendingStore creates a PendingStore whose markers expire after ttl.
// If ttl <= 0, defaultPendingTTL is used.
func NewPendingStore(client *redis.Client, ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &PendingStore{client: client, ttl: ttl}
}

// Get returns the visitor's marker or domain.ErrNotFound.
func (p *PendingStore) Get(ctx context.Context, visitorID string) (*domain.PendingMarker, error) {
	raw, err := p.client.Get(ctx, p.key(visitorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("pending marker get: %w", err)
	}

	var m domain.PendingMarker
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("pending marker decode: %w", err)
	}
	return &m, nil
}

// Put writes the marker with the configured TTL.
func (p *PendingStore) Put(ctx context.Context, visitorID string, marker *domain.PendingMarker) error {
	raw, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("pending marker encode: %w", err)
	}
	if err := p.client.Set(ctx, p.key(visitorID), raw, p.ttl).Err(); err != nil {
		return fmt.Errorf("pending marker put: %w", err)
	}
	return nil
}

// Delete removes the marker.
func (p *PendingStore) Delete(ctx context.Context, visitorID string) error {
	if err := p.client.Del(ctx, p.key(visitorID)).Err(); err != nil {
		return fmt.Errorf("pending marker delete: %w", err)
	}
	return nil
}

func (p *PendingStore) key(visitorID string) string {
	return "portal:pending:" + visitorID
}
