package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/galleria/internal/access"
	"github.com/onnwee/galleria/internal/content"
	"github.com/onnwee/galleria/internal/middleware"
)

// AccessHandlers holds dependencies for access gate HTTP handlers.
type AccessHandlers struct {
	contentRepo content.Repository
	gate        *access.Gate
	previews    bool
}

// NewAccessHandlers creates a new AccessHandlers instance.
func NewAccessHandlers(contentRepo content.Repository, gate *access.Gate) *AccessHandlers {
	return &AccessHandlers{
		contentRepo: contentRepo,
		gate:        gate,
	}
}

// EnablePreviews makes degraded decisions reference the blurred preview
// endpoint. Only call when a preview renderer is actually mounted.
func (h *AccessHandlers) EnablePreviews() {
	h.previews = true
}

// AccessResponse is the gate decision for one content item.
type AccessResponse struct {
	ContentID  string `json:"content_id"`
	PreviewURL string `json:"preview_url,omitempty"`
	access.Decision
}

// CheckAccess evaluates the viewer's access level for a content item.
// GET /content/{id}/access
func (h *AccessHandlers) CheckAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := r.PathValue("id")
	if id == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "content id is required")
		return
	}

	ref, err := h.contentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "content not found")
			return
		}
		slog.ErrorContext(ctx, "failed to load content", "content_id", id, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load content")
		return
	}

	viewer := middleware.GetViewer(ctx)
	decision, err := h.gate.CanView(ctx, ref, viewer.Subject, false)
	if err != nil {
		// The decision is still safe to serve; the gate fails closed.
		slog.WarnContext(ctx, "access evaluation degraded",
			"content_id", id,
			"error", err)
	}

	resp := AccessResponse{
		ContentID: ref.ID,
		Decision:  decision,
	}
	if decision.Level == access.LevelDegraded && h.previews && ref.StorageKey != "" {
		resp.PreviewURL = "/content/" + ref.ID + "/preview"
	}

	WriteJSON(w, ctx, http.StatusOK, resp)
}
