package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/galleria/internal/content"
	"github.com/onnwee/galleria/internal/middleware"
	"github.com/onnwee/galleria/internal/preview"
)

// ObjectFetcher reads stored asset bytes for server-side processing.
type ObjectFetcher interface {
	GetObject(ctx context.Context, storageKey string) ([]byte, error)
}

// PreviewHandlers serves blurred preview renditions of gated content.
// The original bytes never pass through here unprocessed.
type PreviewHandlers struct {
	contentRepo content.Repository
	fetcher     ObjectFetcher
	renderer    *preview.Renderer
}

// NewPreviewHandlers creates a new PreviewHandlers instance.
func NewPreviewHandlers(contentRepo content.Repository, fetcher ObjectFetcher, renderer *preview.Renderer) *PreviewHandlers {
	return &PreviewHandlers{
		contentRepo: contentRepo,
		fetcher:     fetcher,
		renderer:    renderer,
	}
}

// ServePreview returns the blurred preview for a content item. Safe to
// serve at any access level; degraded access responses link here.
// GET /content/{id}/preview
func (h *PreviewHandlers) ServePreview(w http.ResponseWriter, r *http.Request) {
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

	if ref.StorageKey == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "no preview available")
		return
	}

	original, err := h.fetcher.GetObject(ctx, ref.StorageKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch asset for preview", "content_id", id, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to render preview")
		return
	}

	rendered, err := h.renderer.RenderBytes(original)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render preview", "content_id", id, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to render preview")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(rendered)
}
