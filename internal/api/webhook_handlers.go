package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/galleria/internal/middleware"
	"github.com/onnwee/galleria/internal/payment"
)

// maxWebhookBodyBytes caps Stripe webhook payloads. Stripe's own limit is
// lower; this is a backstop against junk traffic.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandlers holds dependencies for webhook HTTP handlers.
type WebhookHandlers struct {
	processor *payment.WebhookProcessor
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(processor *payment.WebhookProcessor) *WebhookHandlers {
	return &WebhookHandlers{processor: processor}
}

// HandleStripeWebhook verifies and processes Stripe webhook events.
// POST /webhooks/stripe
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}

	if err := h.processor.Process(ctx, body, signature); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
			return
		}
		// Processing failures must surface as 5xx so Stripe retries.
		slog.ErrorContext(ctx, "webhook processing failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	w.WriteHeader(http.StatusOK)
}
