// Package reaction provides per-user, per-content reaction state with
// at-most-one-active-reaction-per-type semantics and aggregate counters.
package reaction

import (
	"errors"
	"time"
)

// Common errors for reaction operations.
var (
	ErrInvalidType = errors.New("invalid reaction type")
	ErrMissingUser = errors.New("user id is required")
)

// Type is a reaction type. A user may hold several types on the same
// content simultaneously (independent dimensions), but at most one row
// per (content, user, type).
type Type string

// The fixed reaction taxonomy. LIKE is the base reaction tracked as a
// boolean "has this user liked"; the others are expressive reactions.
const (
	TypeLike  Type = "LIKE"
	TypeLove  Type = "LOVE"
	TypeFire  Type = "FIRE"
	TypeWow   Type = "WOW"
	TypeSmile Type = "SMILE"
)

// AllTypes lists every valid reaction type in display order.
var AllTypes = []Type{TypeLike, TypeLove, TypeFire, TypeWow, TypeSmile}

// ParseType validates a raw string as a reaction type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Valid reports whether the type belongs to the fixed taxonomy.
func (t Type) Valid() bool {
	switch t {
	case TypeLike, TypeLove, TypeFire, TypeWow, TypeSmile:
		return true
	}
	return false
}

// Reaction is a single user's stance of one type on one content item.
// Rows are created on toggle-on and deleted on toggle-off, never updated.
type Reaction struct {
	ID        string    `json:"id"`
	ContentID string    `json:"content_id"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats holds derived per-content totals. Counts includes every type,
// LIKE included, for display. Total is the sum of all types EXCLUDING
// LIKE: "total reactions" badges show expressive reactions only, while
// LIKE is surfaced separately as a boolean. Product rule, do not change
// without updating the counters everywhere they are rendered.
type Stats struct {
	Counts map[Type]int `json:"counts"`
	Total  int          `json:"total"`
}

// NewStats returns empty stats with a non-nil counts map.
func NewStats() Stats {
	return Stats{Counts: make(map[Type]int)}
}

// UserState is the per-viewer view of a content item's reactions, used to
// render active/inactive affordances without leaking other users'
// identities.
type UserState struct {
	HasLiked bool   `json:"user_has_liked"`
	Types    []Type `json:"user_reaction_types"`
}
