package content

import (
	"context"
	"sync"
	"time"
)

// Repository defines the interface for content registration and lookup.
type Repository interface {
	// Register persists a content ref. Registration is idempotent on id:
	// re-registering an existing id returns the stored ref unchanged.
	// The ref's ID must already be canonical (see ResolveID).
	Register(ctx context.Context, ref *Ref) (*Ref, error)

	// GetByID retrieves a content ref by its canonical id.
	// Returns ErrContentNotFound if the id is unknown.
	GetByID(ctx context.Context, id string) (*Ref, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu   sync.RWMutex
	refs map[string]*Ref
}

// NewInMemoryRepository creates a new in-memory content repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		refs: make(map[string]*Ref),
	}
}

// Register persists a content ref, returning the existing one on repeat.
func (r *InMemoryRepository) Register(ctx context.Context, ref *Ref) (*Ref, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.ID == "" {
		ref.ID = ResolveID("", ref.OwnerProfileID, ref.SourceURL)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.refs[ref.ID]; ok {
		copied := *existing
		return &copied, nil
	}

	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now()
	}

	// Store a copy to prevent external mutation
	copied := *ref
	r.refs[ref.ID] = &copied

	result := copied
	return &result, nil
}

// GetByID retrieves a content ref by its canonical id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Ref, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.refs[id]
	if !ok {
		return nil, ErrContentNotFound
	}

	copied := *ref
	return &copied, nil
}
