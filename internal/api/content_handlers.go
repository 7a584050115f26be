package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/galleria/internal/content"
	"github.com/onnwee/galleria/internal/middleware"
)

// ContentHandlers holds dependencies for content registration handlers.
type ContentHandlers struct {
	contentRepo content.Repository
}

// NewContentHandlers creates a new ContentHandlers instance.
func NewContentHandlers(contentRepo content.Repository) *ContentHandlers {
	return &ContentHandlers{contentRepo: contentRepo}
}

// RegisterRequest describes a content item being registered. Tier defaults
// to PUBLIC when omitted.
type RegisterRequest struct {
	SourceURL  string `json:"source_url"`
	Tier       string `json:"tier,omitempty"`
	PriceCents int64  `json:"price_cents,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
}

// RegisterResponse returns the canonical ref. The storage key is never
// echoed back.
type RegisterResponse struct {
	Content *content.Ref `json:"content"`
}

// Register creates (or returns) the canonical ref for a content item owned
// by the authenticated viewer.
// POST /contents
func (h *ContentHandlers) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer := middleware.GetViewer(ctx)
	if !viewer.Authenticated() {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "an authenticated account is required to register content")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	tier := content.Tier(req.Tier)
	if req.Tier == "" {
		tier = content.TierPublic
	}

	ref, err := h.contentRepo.Register(ctx, &content.Ref{
		OwnerProfileID: viewer.Subject,
		SourceURL:      req.SourceURL,
		Tier:           tier,
		PriceCents:     req.PriceCents,
		StorageKey:     req.StorageKey,
	})
	if err != nil {
		switch err {
		case content.ErrInvalidTier, content.ErrMissingSource, content.ErrMissingOwner:
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			slog.ErrorContext(ctx, "content registration failed", "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to register content")
		}
		return
	}

	WriteJSON(w, ctx, http.StatusCreated, RegisterResponse{Content: ref})
}
