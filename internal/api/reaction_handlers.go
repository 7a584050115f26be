package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/galleria/internal/content"
	"github.com/onnwee/galleria/internal/live"
	"github.com/onnwee/galleria/internal/middleware"
	"github.com/onnwee/galleria/internal/reaction"
)

// ReactionHandlers holds dependencies for reaction HTTP handlers.
type ReactionHandlers struct {
	contentRepo  content.Repository
	reactionRepo reaction.Repository
	broadcaster  *live.StatsBroadcaster
	autoRegister bool
	bulkLimit    int
}

// NewReactionHandlers creates a new ReactionHandlers instance.
// broadcaster may be nil; toggles then skip the live push.
func NewReactionHandlers(
	contentRepo content.Repository,
	reactionRepo reaction.Repository,
	broadcaster *live.StatsBroadcaster,
	autoRegister bool,
	bulkLimit int,
) *ReactionHandlers {
	return &ReactionHandlers{
		contentRepo:  contentRepo,
		reactionRepo: reactionRepo,
		broadcaster:  broadcaster,
		autoRegister: autoRegister,
		bulkLimit:    bulkLimit,
	}
}

// ToggleRequest identifies a content item and a reaction type. The item
// can be named by canonical id, or by owner + source URL (which is also
// how unregistered items get auto-registered on first reaction).
type ToggleRequest struct {
	ContentID      string `json:"content_id,omitempty"`
	OwnerProfileID string `json:"owner_profile_id,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
	Type           string `json:"type"`
}

// ToggleResponse reports the post-toggle state, including the viewer's
// own reaction state so the client can settle optimistic UI in one round
// trip.
type ToggleResponse struct {
	ContentID string         `json:"content_id"`
	Type      string         `json:"type"`
	Active    bool           `json:"active"`
	Stats     reaction.Stats `json:"stats"`
	reaction.UserState
}

// resolveContent maps a toggle/stats request onto a registered content
// ref, auto-registering by (owner, source URL) when enabled.
func (h *ReactionHandlers) resolveContent(r *http.Request, contentID, ownerProfileID, sourceURL string) (*content.Ref, int, string) {
	ctx := r.Context()

	id := content.ResolveID(contentID, ownerProfileID, sourceURL)
	if id == "" {
		return nil, http.StatusBadRequest, "content_id or owner_profile_id and source_url are required"
	}

	ref, err := h.contentRepo.GetByID(ctx, id)
	if err == nil {
		return ref, 0, ""
	}
	if !errors.Is(err, content.ErrContentNotFound) {
		slog.ErrorContext(ctx, "failed to load content", "content_id", id, "error", err)
		return nil, http.StatusInternalServerError, "failed to load content"
	}

	// Unknown id. A bare id cannot be registered; owner + source can,
	// when auto-registration is on.
	if !h.autoRegister || ownerProfileID == "" || sourceURL == "" {
		return nil, http.StatusNotFound, "content not found"
	}

	ref, err = h.contentRepo.Register(ctx, &content.Ref{
		ID:             id,
		OwnerProfileID: ownerProfileID,
		SourceURL:      sourceURL,
		Tier:           content.TierPublic,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to auto-register content", "content_id", id, "error", err)
		return nil, http.StatusInternalServerError, "failed to register content"
	}
	slog.InfoContext(ctx, "content auto-registered on first reaction",
		"content_id", ref.ID,
		"owner_profile_id", ref.OwnerProfileID)
	return ref, 0, ""
}

// Toggle flips a reaction for the current viewer.
// POST /reactions/toggle
func (h *ReactionHandlers) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer := middleware.GetViewer(ctx)
	if viewer.Subject == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "an identity is required to react")
		return
	}

	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	reactionType, err := reaction.ParseType(req.Type)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unknown reaction type")
		return
	}

	ref, status, message := h.resolveContent(r, req.ContentID, req.OwnerProfileID, req.SourceURL)
	if ref == nil {
		code := ErrCodeNotFound
		if status == http.StatusBadRequest {
			code = ErrCodeValidation
		} else if status == http.StatusInternalServerError {
			code = ErrCodeInternal
		}
		ctx = middleware.SetErrorCode(ctx, code)
		WriteError(w, ctx, status, code, message)
		return
	}

	result, err := h.reactionRepo.Toggle(ctx, ref.ID, viewer.Subject, reactionType)
	if err != nil {
		slog.ErrorContext(ctx, "toggle failed",
			"content_id", ref.ID,
			"type", string(reactionType),
			"error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to toggle reaction")
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.Broadcast(ref.ID, result.Stats)
	}

	userState, err := h.reactionRepo.UserState(ctx, ref.ID, viewer.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "user state read failed", "content_id", ref.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to read reaction state")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, ToggleResponse{
		ContentID: ref.ID,
		Type:      string(reactionType),
		Active:    result.Active,
		Stats:     result.Stats,
		UserState: userState,
	})
}

// StatsResponse carries aggregate counts plus the viewer's own state.
type StatsResponse struct {
	ContentID string         `json:"content_id"`
	Stats     reaction.Stats `json:"stats"`
	reaction.UserState
}

// Stats returns aggregate counts and the viewer's own reaction state.
// GET /reactions/stats?content_id=...
func (h *ReactionHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	ref, status, message := h.resolveContent(r, q.Get("content_id"), q.Get("owner_profile_id"), q.Get("source_url"))
	if ref == nil {
		// Unknown content reads as zero state, matching the bulk path:
		// a page rendering an unreacted item should not see errors.
		if status == http.StatusNotFound {
			id := content.ResolveID(q.Get("content_id"), q.Get("owner_profile_id"), q.Get("source_url"))
			WriteJSON(w, ctx, http.StatusOK, StatsResponse{
				ContentID: id,
				Stats:     reaction.NewStats(),
				UserState: reaction.UserState{Types: []reaction.Type{}},
			})
			return
		}
		code := ErrCodeValidation
		if status == http.StatusInternalServerError {
			code = ErrCodeInternal
		}
		ctx = middleware.SetErrorCode(ctx, code)
		WriteError(w, ctx, status, code, message)
		return
	}

	stats, err := h.reactionRepo.Stats(ctx, ref.ID)
	if err != nil {
		slog.ErrorContext(ctx, "stats read failed", "content_id", ref.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to read stats")
		return
	}

	viewer := middleware.GetViewer(ctx)
	userState, err := h.reactionRepo.UserState(ctx, ref.ID, viewer.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "user state read failed", "content_id", ref.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to read stats")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, StatsResponse{
		ContentID: ref.ID,
		Stats:     stats,
		UserState: userState,
	})
}

// BulkRequest names the content ids to aggregate.
type BulkRequest struct {
	ContentIDs []string `json:"content_ids"`
}

// BulkResponse maps content id to LIKE-excluded total. Unknown ids are
// absent.
type BulkResponse struct {
	Totals map[string]int `json:"totals"`
}

// Bulk computes totals for a page of content ids in one request.
// POST /reactions/bulk
func (h *ReactionHandlers) Bulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	if len(req.ContentIDs) > h.bulkLimit {
		ctx = middleware.SetErrorCode(ctx, ErrCodePayloadTooLarge)
		WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "too many content ids in one batch")
		return
	}

	totals, err := h.reactionRepo.BulkTotals(ctx, req.ContentIDs)
	if err != nil {
		slog.ErrorContext(ctx, "bulk totals failed", "count", len(req.ContentIDs), "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to read totals")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, BulkResponse{Totals: totals})
}
