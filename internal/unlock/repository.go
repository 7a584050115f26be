package unlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines methods for unlock grant persistence.
type Repository interface {
	// Grant records an unlock for (userID, scope). Idempotent: re-granting
	// an already-held scope returns the existing grant with created=false,
	// never a duplicate row and never an error. Duplicate purchase-
	// confirmation callbacks (webhook retries) rely on this.
	Grant(ctx context.Context, userID string, scope Scope, priceCents int64) (grant *Grant, created bool, err error)

	// GetByUserAndScope retrieves a grant by its natural key.
	// Returns ErrGrantNotFound if absent.
	GetByUserAndScope(ctx context.Context, userID string, scope Scope) (*Grant, error)

	// HasUnlock reports whether the user holds a grant covering the given
	// content: either SingleContent(contentID) or
	// EntireGallery(ownerProfileID).
	HasUnlock(ctx context.Context, userID, contentID, ownerProfileID string) (bool, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu     sync.RWMutex
	grants map[string]*Grant // naturalKey -> grant
}

// NewInMemoryRepository creates a new in-memory unlock repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		grants: make(map[string]*Grant),
	}
}

func grantKey(userID string, scope Scope) string {
	return userID + "\x00" + string(scope.Kind) + "\x00" + scope.Target
}

// Grant records an unlock, returning the existing grant on repeat.
func (r *InMemoryRepository) Grant(ctx context.Context, userID string, scope Scope, priceCents int64) (*Grant, bool, error) {
	if userID == "" {
		return nil, false, ErrMissingUser
	}
	if !scope.Valid() {
		return nil, false, ErrInvalidScope
	}
	if priceCents < 0 {
		return nil, false, ErrNegativePrice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := grantKey(userID, scope)
	if existing, ok := r.grants[key]; ok {
		copied := *existing
		return &copied, false, nil
	}

	grant := &Grant{
		ID:         uuid.New().String(),
		UserID:     userID,
		Scope:      scope,
		PriceCents: priceCents,
		GrantedAt:  time.Now(),
	}
	r.grants[key] = grant

	copied := *grant
	return &copied, true, nil
}

// GetByUserAndScope retrieves a grant by its natural key.
func (r *InMemoryRepository) GetByUserAndScope(ctx context.Context, userID string, scope Scope) (*Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grant, ok := r.grants[grantKey(userID, scope)]
	if !ok {
		return nil, ErrGrantNotFound
	}
	copied := *grant
	return &copied, nil
}

// HasUnlock reports whether the user holds a grant covering the content.
func (r *InMemoryRepository) HasUnlock(ctx context.Context, userID, contentID, ownerProfileID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.grants[grantKey(userID, SingleContent(contentID))]; ok {
		return true, nil
	}
	if _, ok := r.grants[grantKey(userID, EntireGallery(ownerProfileID))]; ok {
		return true, nil
	}
	return false, nil
}
