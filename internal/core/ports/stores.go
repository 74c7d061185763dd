package ports

import (
	"context"

	"github.com/taskflow/portal/internal/core/domain"
)

// SessionMirror is the persistent key-value slot mirroring a visitor's
// session. Load returns domain.ErrNotFound when the slot is empty.
type SessionMirror interface {
	Load(ctx context.Context, visitorID string) (*domain.AuthSession, error)
	Save(ctx context.Context, visitorID string, session *domain.AuthSession) error
	Delete(ctx context.Context, visitorID string) error
}

// PendingStore holds the short-lived pending-approval marker. It never
// shares a slot with SessionMirror.
type PendingStore interface {
	Get(ctx context.Context, visitorID string) (*domain.PendingMarker, error)
	Put(ctx context.Context, visitorID string, marker *domain.PendingMarker) error
	Delete(ctx context.Context, visitorID string) error
}

// LifecycleRepository persists lifecycle journal entries.
type LifecycleRepository interface {
	Insert(ctx context.Context, event *domain.LifecycleEvent) error
	ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*domain.LifecycleEvent, error)
}

// LifecycleJournal accepts journal entries without blocking the caller.
type LifecycleJournal interface {
	Record(event domain.LifecycleEvent)
}
