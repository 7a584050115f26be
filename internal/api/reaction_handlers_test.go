package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/galleria/internal/auth"
	"github.com/onnwee/galleria/internal/content"
	"github.com/onnwee/galleria/internal/middleware"
	"github.com/onnwee/galleria/internal/reaction"
)

func newReactionFixture(t *testing.T, autoRegister bool) (*ReactionHandlers, content.Repository, reaction.Repository) {
	t.Helper()
	contentRepo := content.NewInMemoryRepository()
	reactionRepo := reaction.NewInMemoryRepository()
	handlers := NewReactionHandlers(contentRepo, reactionRepo, nil, autoRegister, 200)
	return handlers, contentRepo, reactionRepo
}

func asViewer(req *http.Request, subject string, level auth.IdentityLevel) *http.Request {
	ctx := middleware.SetViewer(req.Context(), auth.Identity{Subject: subject, Level: level})
	return req.WithContext(ctx)
}

func registerFixtureContent(t *testing.T, repo content.Repository) *content.Ref {
	t.Helper()
	ref, err := repo.Register(context.Background(), &content.Ref{
		OwnerProfileID: "profile-owner",
		SourceURL:      "https://cdn.example.com/a.jpg",
		Tier:           content.TierPublic,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return ref
}

func TestToggle_OnThenOff(t *testing.T) {
	handlers, contentRepo, _ := newReactionFixture(t, false)
	ref := registerFixtureContent(t, contentRepo)

	toggle := func() ToggleResponse {
		body, _ := json.Marshal(ToggleRequest{ContentID: ref.ID, Type: "FIRE"})
		req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", bytes.NewReader(body))
		req = asViewer(req, "user-a", auth.LevelAuthenticated)
		w := httptest.NewRecorder()
		handlers.Toggle(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp ToggleResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		return resp
	}

	on := toggle()
	if !on.Active {
		t.Error("Expected first toggle to activate")
	}
	if on.Stats.Counts[reaction.TypeFire] != 1 || on.Stats.Total != 1 {
		t.Errorf("Expected FIRE 1 / total 1, got %+v", on.Stats)
	}
	if len(on.Types) != 1 || on.Types[0] != reaction.TypeFire {
		t.Errorf("Expected viewer state [FIRE], got %v", on.Types)
	}

	off := toggle()
	if off.Active {
		t.Error("Expected second toggle to deactivate")
	}
	if off.Stats.Counts[reaction.TypeFire] != 0 || off.Stats.Total != 0 {
		t.Errorf("Expected zero stats after untoggle, got %+v", off.Stats)
	}
	if len(off.Types) != 0 {
		t.Errorf("Expected empty viewer state after untoggle, got %v", off.Types)
	}
}

func TestToggle_AnonymousViewerAllowed(t *testing.T) {
	handlers, contentRepo, _ := newReactionFixture(t, false)
	ref := registerFixtureContent(t, contentRepo)

	body, _ := json.Marshal(ToggleRequest{ContentID: ref.ID, Type: "LIKE"})
	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", bytes.NewReader(body))
	req = asViewer(req, "anon:device-abc123xyz", auth.LevelAnonymous)
	w := httptest.NewRecorder()
	handlers.Toggle(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected anonymous toggle to succeed, got %d", w.Code)
	}
}

func TestToggle_NoIdentityRejected(t *testing.T) {
	handlers, contentRepo, _ := newReactionFixture(t, false)
	ref := registerFixtureContent(t, contentRepo)

	body, _ := json.Marshal(ToggleRequest{ContentID: ref.ID, Type: "LIKE"})
	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handlers.Toggle(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without identity, got %d", w.Code)
	}
}

func TestToggle_UnknownType(t *testing.T) {
	handlers, contentRepo, _ := newReactionFixture(t, false)
	ref := registerFixtureContent(t, contentRepo)

	body, _ := json.Marshal(ToggleRequest{ContentID: ref.ID, Type: "SPARKLE"})
	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", bytes.NewReader(body))
	req = asViewer(req, "user-a", auth.LevelAuthenticated)
	w := httptest.NewRecorder()
	handlers.Toggle(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown type, got %d", w.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if errResp.Error.Code != ErrCodeValidation {
		t.Errorf("Expected %s, got %s", ErrCodeValidation, errResp.Error.Code)
	}
}

func TestToggle_UnknownBareIDNotFound(t *testing.T) {
	handlers, _, _ := newReactionFixture(t, true)

	body, _ := json.Marshal(ToggleRequest{ContentID: "nonexistent", Type: "LIKE"})
	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", bytes.NewReader(body))
	req = asViewer(req, "user-a", auth.LevelAuthenticated)
	w := httptest.NewRecorder()
	handlers.Toggle(w, req)

	// A bare id cannot be auto-registered; only owner + source can.
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestToggle_AutoRegistersByOwnerAndSource(t *testing.T) {
	handlers, contentRepo, _ := newReactionFixture(t, true)

	body, _ := json.Marshal(ToggleRequest{
		OwnerProfileID: "profile-owner",
		SourceURL:      "https://cdn.example.com/new.jpg",
		Type:           "LOVE",
	})
	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", bytes.NewReader(body))
	req = asViewer(req, "user-a", auth.LevelAuthenticated)
	w := httptest.NewRecorder()
	handlers.Toggle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ToggleResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, err := contentRepo.GetByID(context.Background(), resp.ContentID); err != nil {
		t.Errorf("Expected content auto-registered, got %v", err)
	}
}

func TestToggle_AutoRegisterDisabled(t *testing.T) {
	handlers, _, _ := newReactionFixture(t, false)

	body, _ := json.Marshal(ToggleRequest{
		OwnerProfileID: "profile-owner",
		SourceURL:      "https://cdn.example.com/new.jpg",
		Type:           "LOVE",
	})
	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", bytes.NewReader(body))
	req = asViewer(req, "user-a", auth.LevelAuthenticated)
	w := httptest.NewRecorder()
	handlers.Toggle(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with auto-registration off, got %d", w.Code)
	}
}

func TestStats_IncludesViewerState(t *testing.T) {
	handlers, contentRepo, reactionRepo := newReactionFixture(t, false)
	ref := registerFixtureContent(t, contentRepo)
	ctx := context.Background()

	if _, err := reactionRepo.Toggle(ctx, ref.ID, "user-a", reaction.TypeLike); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if _, err := reactionRepo.Toggle(ctx, ref.ID, "user-b", reaction.TypeFire); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/reactions/stats?content_id="+ref.ID, nil)
	req = asViewer(req, "user-a", auth.LevelAuthenticated)
	w := httptest.NewRecorder()
	handlers.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.HasLiked {
		t.Error("Expected user_has_liked true for user-a")
	}
	// LIKE is excluded from the headline total.
	if resp.Stats.Total != 1 {
		t.Errorf("Expected total 1 (FIRE only), got %d", resp.Stats.Total)
	}
}

func TestStats_UnknownContentYieldsZeroState(t *testing.T) {
	handlers, _, _ := newReactionFixture(t, false)

	req := httptest.NewRequest(http.MethodGet, "/reactions/stats?content_id=unknown", nil)
	w := httptest.NewRecorder()
	handlers.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for unknown content, got %d", w.Code)
	}

	var resp StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Stats.Total != 0 {
		t.Errorf("Expected zero total, got %d", resp.Stats.Total)
	}
	if resp.HasLiked {
		t.Error("Expected user_has_liked false")
	}
}

func TestBulk_TotalsForPage(t *testing.T) {
	handlers, contentRepo, reactionRepo := newReactionFixture(t, false)
	ref := registerFixtureContent(t, contentRepo)
	ctx := context.Background()

	if _, err := reactionRepo.Toggle(ctx, ref.ID, "user-a", reaction.TypeFire); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if _, err := reactionRepo.Toggle(ctx, ref.ID, "user-b", reaction.TypeLove); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	body, _ := json.Marshal(BulkRequest{ContentIDs: []string{ref.ID, "unknown-id"}})
	req := httptest.NewRequest(http.MethodPost, "/reactions/bulk", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handlers.Bulk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp BulkResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Totals[ref.ID] != 2 {
		t.Errorf("Expected total 2, got %d", resp.Totals[ref.ID])
	}
	if _, present := resp.Totals["unknown-id"]; present {
		t.Error("Unknown ids must be absent from bulk totals")
	}
}

func TestBulk_OverBatchLimit(t *testing.T) {
	handlers, _, _ := newReactionFixture(t, false)

	ids := make([]string, 201)
	for i := range ids {
		ids[i] = fmt.Sprintf("content-%d", i)
	}
	body, _ := json.Marshal(BulkRequest{ContentIDs: ids})
	req := httptest.NewRequest(http.MethodPost, "/reactions/bulk", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handlers.Bulk(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413 over batch limit, got %d", w.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if errResp.Error.Code != ErrCodePayloadTooLarge {
		t.Errorf("Expected %s, got %s", ErrCodePayloadTooLarge, errResp.Error.Code)
	}
}
