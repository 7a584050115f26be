// Package unlock provides durable unlock grant records proving a viewer
// purchased access to premium content or an entire gallery.
package unlock

import (
	"errors"
	"time"
)

// Common errors for unlock operations.
var (
	ErrGrantNotFound   = errors.New("unlock grant not found")
	ErrInvalidScope    = errors.New("invalid unlock scope")
	ErrMissingUser     = errors.New("user id is required")
	ErrNegativePrice   = errors.New("price cannot be negative")
)

// ScopeKind distinguishes what an unlock grant covers.
type ScopeKind string

const (
	// ScopeSingleContent unlocks one content item by canonical id.
	ScopeSingleContent ScopeKind = "single_content"

	// ScopeEntireGallery unlocks every item owned by one profile.
	ScopeEntireGallery ScopeKind = "entire_gallery"
)

// Scope identifies what a grant unlocks. Target is a content id for
// ScopeSingleContent and an owner profile id for ScopeEntireGallery.
type Scope struct {
	Kind   ScopeKind `json:"kind"`
	Target string    `json:"target"`
}

// SingleContent builds a scope covering one content item.
func SingleContent(contentID string) Scope {
	return Scope{Kind: ScopeSingleContent, Target: contentID}
}

// EntireGallery builds a scope covering everything a profile owns.
func EntireGallery(ownerProfileID string) Scope {
	return Scope{Kind: ScopeEntireGallery, Target: ownerProfileID}
}

// Valid reports whether the scope is well-formed.
func (s Scope) Valid() bool {
	if s.Target == "" {
		return false
	}
	return s.Kind == ScopeSingleContent || s.Kind == ScopeEntireGallery
}

// Grant is a durable record of purchased access. Created exactly once per
// successful purchase confirmation, never mutated, checked on every
// access-gate evaluation.
type Grant struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Scope      Scope     `json:"scope"`
	PriceCents int64     `json:"price_cents"`
	GrantedAt  time.Time `json:"granted_at"`
}
