package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskflow/portal/internal/core/domain"
)

const (
	collectionLifecycleEvents = "lifecycle_events"
	defaultListLimit          = 50
	maxListLimit              = 500
	defaultTimeout            = connectTimeout
)

// LifecycleRepository implements ports.LifecycleRepository using MongoDB.
type LifecycleRepository struct {
	col *mongo.Collection
}

// NewLifecycleRepository creates a new LifecycleRepository.
func NewLifecycleRepository(db *mongo.Database) *LifecycleRepository {
	return &LifecycleRepository{col: db.Collection(collectionLifecycleEvents)}
}

type lifecycleDoc struct {
	ID         string    `bson:"_id"`
	VisitorID  string    `bson:"visitor_id"`
	Kind       string    `bson:"kind"`
	Method     string    `bson:"method,omitempty"`
	Email      string    `bson:"email,omitempty"`
	Role       string    `bson:"role,omitempty"`
	Message    string    `bson:"message,omitempty"`
	OccurredAt time.Time `bson:"occurred_at"`
}

// Insert persists a lifecycle event. Re-inserting the same ID is a no-op so
// retried journal writes stay idempotent.
func (r *LifecycleRepository) Insert(ctx context.Context, event *domain.LifecycleEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := lifecycleDoc{
		ID:         event.ID,
		VisitorID:  event.VisitorID,
		Kind:       event.Kind,
		Method:     string(event.Method),
		Email:      event.Email,
		Role:       string(event.Role),
		Message:    event.Message,
		OccurredAt: event.OccurredAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert lifecycle event: %w", err)
	}
	return nil
}

// ListByVisitor returns the most recent events for a visitor, newest first.
func (r *LifecycleRepository) ListByVisitor(ctx context.Context, visitorID string, limit int) ([]*domain.LifecycleEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{"visitor_id": visitorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find lifecycle events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []lifecycleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode lifecycle events: %w", err)
	}

	out := make([]*domain.LifecycleEvent, len(docs))
	for i, d := range docs {
		out[i] = &domain.LifecycleEvent{
			ID:         d.ID,
			VisitorID:  d.VisitorID,
			Kind:       d.Kind,
			Method:     domain.IssuanceMethod(d.Method),
			Email:      d.Email,
			Role:       domain.Role(d.Role),
			Message:    d.Message,
			OccurredAt: d.OccurredAt,
		}
	}
	return out, nil
}

// EnsureIndexes creates necessary indexes on the lifecycle_events collection.
func (r *LifecycleRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "visitor_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
