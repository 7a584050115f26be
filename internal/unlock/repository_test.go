package unlock

import (
	"context"
	"sync"
	"testing"
)

func TestGrant_CreatesOnce(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, created, err := repo.Grant(ctx, "user-a", SingleContent("content-x"), 900)
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if !created {
		t.Error("Expected first grant to be created")
	}
	if first.PriceCents != 900 {
		t.Errorf("Expected price 900, got %d", first.PriceCents)
	}

	second, created, err := repo.Grant(ctx, "user-a", SingleContent("content-x"), 900)
	if err != nil {
		t.Fatalf("Repeat grant failed: %v", err)
	}
	if created {
		t.Error("Expected repeat grant to return existing record")
	}
	if second.ID != first.ID {
		t.Errorf("Expected same grant id, got %s and %s", first.ID, second.ID)
	}
}

func TestGrant_ConcurrentDuplicates(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	// Webhook retries arrive concurrently; exactly one row may exist.
	const attempts = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, created, err := repo.Grant(ctx, "user-a", EntireGallery("profile-1"), 2500)
			if err != nil {
				t.Errorf("Grant failed: %v", err)
				return
			}
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if createdCount != 1 {
		t.Errorf("Expected exactly one creation, got %d", createdCount)
	}
}

func TestGrant_Validation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if _, _, err := repo.Grant(ctx, "", SingleContent("c"), 1); err != ErrMissingUser {
		t.Errorf("Expected ErrMissingUser, got %v", err)
	}
	if _, _, err := repo.Grant(ctx, "u", Scope{Kind: "weekly", Target: "c"}, 1); err != ErrInvalidScope {
		t.Errorf("Expected ErrInvalidScope, got %v", err)
	}
	if _, _, err := repo.Grant(ctx, "u", SingleContent(""), 1); err != ErrInvalidScope {
		t.Errorf("Expected ErrInvalidScope for empty target, got %v", err)
	}
	if _, _, err := repo.Grant(ctx, "u", SingleContent("c"), -5); err != ErrNegativePrice {
		t.Errorf("Expected ErrNegativePrice, got %v", err)
	}
}

func TestHasUnlock_SingleContent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if _, _, err := repo.Grant(ctx, "user-a", SingleContent("content-x"), 900); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	ok, err := repo.HasUnlock(ctx, "user-a", "content-x", "profile-1")
	if err != nil {
		t.Fatalf("HasUnlock failed: %v", err)
	}
	if !ok {
		t.Error("Expected unlock for granted content")
	}

	ok, err = repo.HasUnlock(ctx, "user-a", "content-y", "profile-1")
	if err != nil {
		t.Fatalf("HasUnlock failed: %v", err)
	}
	if ok {
		t.Error("Expected no unlock for different content")
	}
}

func TestHasUnlock_GalleryCoversAllContent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if _, _, err := repo.Grant(ctx, "user-a", EntireGallery("profile-1"), 2500); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	for _, contentID := range []string{"content-x", "content-y"} {
		ok, err := repo.HasUnlock(ctx, "user-a", contentID, "profile-1")
		if err != nil {
			t.Fatalf("HasUnlock failed: %v", err)
		}
		if !ok {
			t.Errorf("Expected gallery grant to cover %s", contentID)
		}
	}

	ok, err := repo.HasUnlock(ctx, "user-a", "content-z", "profile-2")
	if err != nil {
		t.Fatalf("HasUnlock failed: %v", err)
	}
	if ok {
		t.Error("Expected gallery grant not to cover another profile")
	}
}

func TestHasUnlock_AnonymousUser(t *testing.T) {
	repo := NewInMemoryRepository()

	ok, err := repo.HasUnlock(context.Background(), "", "content-x", "profile-1")
	if err != nil {
		t.Fatalf("HasUnlock failed: %v", err)
	}
	if ok {
		t.Error("Expected no unlock for empty user id")
	}
}

func TestGetByUserAndScope_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.GetByUserAndScope(context.Background(), "user-a", SingleContent("content-x"))
	if err != ErrGrantNotFound {
		t.Errorf("Expected ErrGrantNotFound, got %v", err)
	}
}
