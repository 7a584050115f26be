// Package access evaluates whether a viewer may see un-degraded content,
// based on the content's visibility tier and unlock grant records.
package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/galleria/internal/content"
	"github.com/onnwee/galleria/internal/unlock"
)

// Level is the outcome of a gate evaluation.
type Level string

const (
	// LevelFull grants the un-degraded asset.
	LevelFull Level = "full"

	// LevelDegraded withholds the asset (blurred/hidden) while carrying
	// enough metadata to prompt a purchase.
	LevelDegraded Level = "degraded"
)

// Decision is the result of a gate evaluation. For degraded PREMIUM
// content it carries the price and an unlock affordance; the underlying
// asset URL is never populated on a degraded decision.
type Decision struct {
	Level       Level         `json:"access"`
	PriceCents  *int64        `json:"price_cents,omitempty"`
	UnlockScope *unlock.Scope `json:"unlock_scope,omitempty"`
	AssetURL    string        `json:"asset_url,omitempty"`
}

// AssetSigner mints short-lived URLs for stored assets. Full-access
// decisions carry a signed URL instead of the raw storage location.
type AssetSigner interface {
	SignGet(ctx context.Context, storageKey string, expiry time.Duration) (string, error)
}

// Gate evaluates visibility decisions. Any evaluation error fails closed:
// the viewer gets a degraded decision, never the asset.
type Gate struct {
	grants     unlock.Repository
	signer     AssetSigner // may be nil; decisions then omit asset URLs
	signExpiry time.Duration
	logger     *slog.Logger
}

// DefaultSignExpiry is how long a full-access asset URL stays valid.
const DefaultSignExpiry = 5 * time.Minute

// NewGate creates an access gate. signer may be nil.
func NewGate(grants unlock.Repository, signer AssetSigner, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		grants:     grants,
		signer:     signer,
		signExpiry: DefaultSignExpiry,
		logger:     logger,
	}
}

// SetSignExpiry overrides how long signed asset URLs stay valid.
func (g *Gate) SetSignExpiry(d time.Duration) {
	if d > 0 {
		g.signExpiry = d
	}
}

// CanView evaluates access for a (content, viewer) pair.
//
//   - the owner always gets Full
//   - PUBLIC always yields Full
//   - PRIVATE yields Full only for the owner, regardless of grants
//   - PREMIUM yields Full with a matching unlock grant, else Degraded
//     with the price and an unlock affordance
//
// The returned error reports evaluation problems for observability; the
// decision alongside it is always safe to serve (fail closed).
func (g *Gate) CanView(ctx context.Context, ref *content.Ref, viewerID string, isOwner bool) (Decision, error) {
	if isOwner || ref.IsOwner(viewerID) {
		return g.full(ctx, ref)
	}

	switch ref.Tier {
	case content.TierPublic:
		return g.full(ctx, ref)

	case content.TierPrivate:
		// Owner-only. Unlock grants never apply.
		return Decision{Level: LevelDegraded}, nil

	case content.TierPremium:
		unlocked, err := g.grants.HasUnlock(ctx, viewerID, ref.ID, ref.OwnerProfileID)
		if err != nil {
			g.logger.ErrorContext(ctx, "unlock check failed, failing closed",
				slog.String("content_id", ref.ID),
				slog.String("error", err.Error()))
			return g.degradedPremium(ref), err
		}
		if unlocked {
			return g.full(ctx, ref)
		}
		return g.degradedPremium(ref), nil

	default:
		// Unknown tier: fail closed.
		g.logger.WarnContext(ctx, "unknown visibility tier, failing closed",
			slog.String("content_id", ref.ID),
			slog.String("tier", string(ref.Tier)))
		return Decision{Level: LevelDegraded}, content.ErrInvalidTier
	}
}

// full builds a full-access decision, attaching a signed asset URL when a
// signer is configured and the content has a storage key.
func (g *Gate) full(ctx context.Context, ref *content.Ref) (Decision, error) {
	decision := Decision{Level: LevelFull}
	if g.signer == nil || ref.StorageKey == "" {
		return decision, nil
	}

	url, err := g.signer.SignGet(ctx, ref.StorageKey, g.signExpiry)
	if err != nil {
		// The viewer is entitled to the asset; surface the signing failure
		// rather than silently degrading a legitimate view.
		g.logger.ErrorContext(ctx, "failed to sign asset url",
			slog.String("content_id", ref.ID),
			slog.String("error", err.Error()))
		return decision, err
	}
	decision.AssetURL = url
	return decision, nil
}

// degradedPremium builds the purchase-prompt decision for locked PREMIUM
// content.
func (g *Gate) degradedPremium(ref *content.Ref) Decision {
	price := ref.PriceCents
	scope := unlock.SingleContent(ref.ID)
	return Decision{
		Level:       LevelDegraded,
		PriceCents:  &price,
		UnlockScope: &scope,
	}
}
