package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/onnwee/galleria/internal/unlock"
)

// Checkout metadata keys the purchase flow attaches when creating a
// session. The webhook reads them back to know what to grant.
const (
	MetadataUserID      = "user_id"
	MetadataScopeKind   = "scope_kind"
	MetadataScopeTarget = "scope_target"
)

// Common processor errors.
var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMissingMetadata  = errors.New("checkout session metadata incomplete")
)

// WebhookProcessor verifies Stripe webhook deliveries and converts
// completed checkouts into unlock grants.
type WebhookProcessor struct {
	secret    string
	processed ProcessedRepository
	grants    unlock.Repository
	logger    *slog.Logger
}

// NewWebhookProcessor creates a processor with the given signing secret.
func NewWebhookProcessor(secret string, processed ProcessedRepository, grants unlock.Repository, logger *slog.Logger) *WebhookProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookProcessor{
		secret:    secret,
		processed: processed,
		grants:    grants,
		logger:    logger,
	}
}

// Process verifies the payload against the Stripe-Signature header and
// handles the event. Duplicate deliveries and unhandled event types are
// acknowledged without side effects; the caller should return 200 for any
// nil error.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) error {
	// Accounts can be pinned to an older Stripe API version than the SDK;
	// a version mismatch must not reject every purchase confirmation.
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "webhook signature verification failed",
			slog.String("error", err.Error()))
		return ErrInvalidSignature
	}

	p.logger.InfoContext(ctx, "webhook event received",
		slog.String("event_type", string(event.Type)),
		slog.String("event_id", event.ID))

	seen, err := p.processed.HasProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to check webhook event: %w", err)
	}
	if seen {
		p.logger.InfoContext(ctx, "webhook event already processed, ignoring",
			slog.String("event_id", event.ID))
		return nil
	}

	switch event.Type {
	case "checkout.session.completed":
		if err := p.handleCheckoutCompleted(ctx, event); err != nil {
			return err
		}
	default:
		p.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			slog.String("event_type", string(event.Type)),
			slog.String("event_id", event.ID))
	}

	// Record only after the side effects committed. A transient grant
	// failure leaves the event unrecorded, so the Stripe retry runs the
	// handler again instead of being swallowed as a duplicate. A racing
	// duplicate delivery that recorded first is safe to acknowledge: the
	// grant layer is idempotent on (user, scope).
	if err := p.processed.RecordEvent(ctx, event.ID, string(event.Type)); err != nil {
		if errors.Is(err, ErrEventAlreadyProcessed) {
			return nil
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

// handleCheckoutCompleted grants the unlock described by the session
// metadata. The grant layer is idempotent on (user, scope), so a replayed
// confirmation that slipped past event dedup still cannot double-grant.
func (p *WebhookProcessor) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID := session.Metadata[MetadataUserID]
	scope := unlock.Scope{
		Kind:   unlock.ScopeKind(session.Metadata[MetadataScopeKind]),
		Target: session.Metadata[MetadataScopeTarget],
	}
	if userID == "" || !scope.Valid() {
		p.logger.ErrorContext(ctx, "checkout session metadata incomplete",
			slog.String("event_id", event.ID),
			slog.String("session_id", session.ID))
		return ErrMissingMetadata
	}

	grant, created, err := p.grants.Grant(ctx, userID, scope, session.AmountTotal)
	if err != nil {
		return fmt.Errorf("failed to grant unlock for session %s: %w", session.ID, err)
	}

	p.logger.InfoContext(ctx, "purchase confirmed",
		slog.String("session_id", session.ID),
		slog.String("grant_id", grant.ID),
		slog.String("user_id", userID),
		slog.String("scope_kind", string(scope.Kind)),
		slog.String("scope_target", scope.Target),
		slog.Bool("created", created),
		slog.Int64("amount_cents", session.AmountTotal))
	return nil
}
