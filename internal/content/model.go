// Package content provides canonical identity and registration for media items.
package content

import (
	"errors"
	"time"
)

// Common errors for content operations.
var (
	ErrContentNotFound = errors.New("content not found")
	ErrInvalidTier     = errors.New("invalid visibility tier")
	ErrMissingOwner    = errors.New("owner profile id is required")
	ErrMissingSource   = errors.New("source url is required")
)

// Tier is the visibility tier of a content item.
type Tier string

// Visibility tiers. PRIVATE is owner-only; PREMIUM requires an unlock grant.
const (
	TierPublic  Tier = "PUBLIC"
	TierPremium Tier = "PREMIUM"
	TierPrivate Tier = "PRIVATE"
)

// Valid reports whether the tier is a known visibility tier.
func (t Tier) Valid() bool {
	switch t {
	case TierPublic, TierPremium, TierPrivate:
		return true
	}
	return false
}

// Ref is the logical identity of a media item. The ID is canonical and
// stable: either supplied by a trusted caller or derived from
// (owner, source URL) via ResolveID.
type Ref struct {
	ID             string    `json:"id"`
	OwnerProfileID string    `json:"owner_profile_id"`
	SourceURL      string    `json:"source_url,omitempty"`
	Tier           Tier      `json:"tier"`
	PriceCents     int64     `json:"price_cents,omitempty"` // unlock price for PREMIUM items
	StorageKey     string    `json:"-"`                     // object key in the media bucket; never serialized
	CreatedAt      time.Time `json:"created_at"`
}

// IsOwner reports whether the given profile owns this content.
func (r *Ref) IsOwner(profileID string) bool {
	return profileID != "" && r.OwnerProfileID == profileID
}

// Validate checks that a Ref is complete enough to register.
func (r *Ref) Validate() error {
	if r.OwnerProfileID == "" {
		return ErrMissingOwner
	}
	if r.SourceURL == "" {
		return ErrMissingSource
	}
	if !r.Tier.Valid() {
		return ErrInvalidTier
	}
	return nil
}
