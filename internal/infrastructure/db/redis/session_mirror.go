package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taskflow/portal/internal/core/domain"
)

// SessionMirror persists each visitor's session under its own key.
// Key format: portal:session:<visitor_id>
type SessionMirror struct {
	client *redis.Client
}

// NewSessionMirror creates a SessionMirror wrapping the given Redis client.
func NewSessionMirror(client *redis.Client) *SessionMirror {
	return &SessionMirror{client: client}
}

// Load returns the mirrored session or domain.ErrNotFound.
func (m *SessionMirror) Load(ctx context.Context, visitorID string) (*domain.AuthSession, error) {
	raw, err := m.client.Get(ctx, m.key(visitorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("session mirror load: %w", err)
	}

	var s domain.AuthSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("session mirror decode: %w", err)
	}
	return &s, nil
}

// Save overwrites the visitor's slot. Sessions do not expire in the mirror;
// the credential service decides when a token stops being valid.
func (m *SessionMirror) Save(ctx context.Context, visitorID string, session *domain.AuthSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("session mirror encode: %w", err)
	}
	if err := m.client.Set(ctx, m.key(visitorID), raw, 0).Err(); err != nil {
		return fmt.Errorf("session mirror save: %w", err)
	}
	return nil
}

// Delete removes the visitor's slot. Deleting an empty slot is not an error.
func (m *SessionMirror) Delete(ctx context.Context, visitorID string) error {
	if err := m.client.Del(ctx, m.key(visitorID)).Err(); err != nil {
		return fmt.Errorf("session mirror delete: %w", err)
	}
	return nil
}

func (m *SessionMirror) key(visitorID string) string {
	return "portal:session:" + visitorID
}
