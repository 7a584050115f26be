// Package payment turns verified Stripe purchase confirmations into
// unlock grants, with event-level idempotency so webhook retries never
// double-grant.
package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrEventAlreadyProcessed is returned when a webhook event id was already
// recorded.
var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

// ProcessedEvent records one handled webhook delivery.
type ProcessedEvent struct {
	ID          string
	EventID     string
	EventType   string
	ProcessedAt time.Time
}

// ProcessedRepository tracks which webhook event ids have been handled.
type ProcessedRepository interface {
	// RecordEvent marks an event as processed. Returns
	// ErrEventAlreadyProcessed on a duplicate event id.
	RecordEvent(ctx context.Context, eventID, eventType string) error

	// HasProcessed checks whether an event id was already recorded.
	HasProcessed(ctx context.Context, eventID string) (bool, error)
}

// InMemoryProcessedRepository implements ProcessedRepository in memory.
type InMemoryProcessedRepository struct {
	mu     sync.RWMutex
	events map[string]*ProcessedEvent
}

// NewInMemoryProcessedRepository creates a new in-memory processed-event
// repository.
func NewInMemoryProcessedRepository() *InMemoryProcessedRepository {
	return &InMemoryProcessedRepository{
		events: make(map[string]*ProcessedEvent),
	}
}

// RecordEvent marks an event as processed.
func (r *InMemoryProcessedRepository) RecordEvent(ctx context.Context, eventID, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[eventID]; exists {
		return ErrEventAlreadyProcessed
	}
	r.events[eventID] = &ProcessedEvent{
		ID:          uuid.New().String(),
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	return nil
}

// HasProcessed checks whether an event id was already recorded.
func (r *InMemoryProcessedRepository) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.events[eventID]
	return exists, nil
}

const uniqueViolation = pq.ErrorCode("23505")

// PostgresProcessedRepository implements ProcessedRepository on the
// processed_webhooks table. The UNIQUE(event_id) index carries the
// idempotency guarantee across instances.
type PostgresProcessedRepository struct {
	db *sql.DB
}

// NewPostgresProcessedRepository creates a Postgres-backed processed-event
// repository.
func NewPostgresProcessedRepository(db *sql.DB) *PostgresProcessedRepository {
	return &PostgresProcessedRepository{db: db}
}

// RecordEvent marks an event as processed.
func (r *PostgresProcessedRepository) RecordEvent(ctx context.Context, eventID, eventType string) error {
	query := `
		INSERT INTO processed_webhooks (id, event_id, event_type, processed_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), eventID, eventType)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return ErrEventAlreadyProcessed
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

// HasProcessed checks whether an event id was already recorded.
func (r *PostgresProcessedRepository) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM processed_webhooks WHERE event_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}
