package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/galleria/internal/middleware"
	"github.com/onnwee/galleria/internal/unlock"
)

// UnlockHandlers holds dependencies for unlock grant HTTP handlers.
type UnlockHandlers struct {
	grants unlock.Repository
}

// NewUnlockHandlers creates a new UnlockHandlers instance.
func NewUnlockHandlers(grants unlock.Repository) *UnlockHandlers {
	return &UnlockHandlers{grants: grants}
}

// GrantRequest describes the scope being unlocked.
type GrantRequest struct {
	ScopeKind   string `json:"scope_kind"`
	ScopeTarget string `json:"scope_target"`
	PriceCents  int64  `json:"price_cents"`
}

// GrantResponse returns the durable grant record.
type GrantResponse struct {
	Grant   *unlock.Grant `json:"grant"`
	Created bool          `json:"created"`
}

// Grant records an unlock for the authenticated viewer. Idempotent:
// repeating a held scope returns the existing grant with 200.
// POST /unlocks/grant
func (h *UnlockHandlers) Grant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Anonymous pseudo-identities may react but never hold purchases; a
	// device-scoped grant would be lost with the device.
	viewer := middleware.GetViewer(ctx)
	if !viewer.Authenticated() {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "an authenticated account is required to unlock content")
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	scope := unlock.Scope{
		Kind:   unlock.ScopeKind(req.ScopeKind),
		Target: req.ScopeTarget,
	}

	grant, created, err := h.grants.Grant(ctx, viewer.Subject, scope, req.PriceCents)
	if err != nil {
		switch {
		case errors.Is(err, unlock.ErrInvalidScope), errors.Is(err, unlock.ErrNegativePrice):
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			slog.ErrorContext(ctx, "grant failed",
				"scope_kind", req.ScopeKind,
				"scope_target", req.ScopeTarget,
				"error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to record unlock")
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, ctx, status, GrantResponse{Grant: grant, Created: created})
}
