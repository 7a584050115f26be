package reaction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// The single mutex gives the same effect as the row-locked transaction in
// the Postgres implementation: a toggle observes the previous toggle's
// committed state and acts on it.
type InMemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]*Reaction // naturalKey -> row
}

// NewInMemoryRepository creates a new in-memory reaction repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rows: make(map[string]*Reaction),
	}
}

// naturalKey builds the (content, user, type) key with NUL separators to
// avoid boundary collisions between components.
func naturalKey(contentID, userID string, t Type) string {
	return contentID + "\x00" + userID + "\x00" + string(t)
}

// Toggle flips the reaction and returns post-toggle stats.
func (r *InMemoryRepository) Toggle(ctx context.Context, contentID, userID string, t Type) (*ToggleResult, error) {
	if !t.Valid() {
		return nil, ErrInvalidType
	}
	if userID == "" {
		return nil, ErrMissingUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := naturalKey(contentID, userID, t)
	var active bool
	if _, exists := r.rows[key]; exists {
		delete(r.rows, key)
		active = false
	} else {
		r.rows[key] = &Reaction{
			ID:        uuid.New().String(),
			ContentID: contentID,
			UserID:    userID,
			Type:      t,
			CreatedAt: time.Now(),
		}
		active = true
	}

	return &ToggleResult{
		Active: active,
		Stats:  r.statsLocked(contentID),
	}, nil
}

// Stats computes per-type counts and the LIKE-excluded total.
func (r *InMemoryRepository) Stats(ctx context.Context, contentID string) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statsLocked(contentID), nil
}

// statsLocked computes stats under an already-held lock.
func (r *InMemoryRepository) statsLocked(contentID string) Stats {
	stats := NewStats()
	for _, row := range r.rows {
		if row.ContentID != contentID {
			continue
		}
		stats.Counts[row.Type]++
		if row.Type != TypeLike {
			stats.Total++
		}
	}
	return stats
}

// UserState returns the viewer's own reaction state.
func (r *InMemoryRepository) UserState(ctx context.Context, contentID, viewerID string) (UserState, error) {
	state := UserState{Types: []Type{}}
	if viewerID == "" {
		return state, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range AllTypes {
		if _, ok := r.rows[naturalKey(contentID, viewerID, t)]; !ok {
			continue
		}
		if t == TypeLike {
			state.HasLiked = true
		}
		state.Types = append(state.Types, t)
	}
	return state, nil
}

// BulkTotals computes LIKE-excluded totals for many content ids in one pass.
func (r *InMemoryRepository) BulkTotals(ctx context.Context, contentIDs []string) (map[string]int, error) {
	totals := make(map[string]int, len(contentIDs))
	if len(contentIDs) == 0 {
		return totals, nil
	}

	wanted := make(map[string]bool, len(contentIDs))
	for _, id := range contentIDs {
		wanted[id] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.rows {
		if !wanted[row.ContentID] || row.Type == TypeLike {
			continue
		}
		totals[row.ContentID]++
	}
	return totals, nil
}
