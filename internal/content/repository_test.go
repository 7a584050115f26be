package content

import (
	"context"
	"testing"
)

func TestInMemoryRepository_RegisterAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	ref := &Ref{
		OwnerProfileID: "profile-1",
		SourceURL:      "https://cdn.example.com/media/a.jpg",
		Tier:           TierPublic,
	}

	stored, err := repo.Register(ctx, ref)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("Expected derived id on registration")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}

	got, err := repo.GetByID(ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.OwnerProfileID != "profile-1" {
		t.Errorf("Expected owner profile-1, got %s", got.OwnerProfileID)
	}
}

func TestInMemoryRepository_RegisterIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, err := repo.Register(ctx, &Ref{
		OwnerProfileID: "profile-1",
		SourceURL:      "https://cdn.example.com/media/a.jpg",
		Tier:           TierPremium,
		PriceCents:     900,
	})
	if err != nil {
		t.Fatalf("First register failed: %v", err)
	}

	// Same asset, different cache-bust token: must hit the same row.
	second, err := repo.Register(ctx, &Ref{
		OwnerProfileID: "profile-1",
		SourceURL:      "https://cdn.example.com/media/a.jpg?ts=999",
		Tier:           TierPublic, // ignored on repeat; existing ref wins
	})
	if err != nil {
		t.Fatalf("Second register failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("Expected same id, got %s and %s", first.ID, second.ID)
	}
	if second.Tier != TierPremium {
		t.Errorf("Expected existing tier to be preserved, got %s", second.Tier)
	}
	if second.PriceCents != 900 {
		t.Errorf("Expected existing price to be preserved, got %d", second.PriceCents)
	}
}

func TestInMemoryRepository_GetUnknown(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.GetByID(context.Background(), "nope")
	if err != ErrContentNotFound {
		t.Errorf("Expected ErrContentNotFound, got %v", err)
	}
}

func TestInMemoryRepository_RegisterValidation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	tests := []struct {
		name string
		ref  *Ref
		want error
	}{
		{"missing owner", &Ref{SourceURL: "https://x.example.com/a", Tier: TierPublic}, ErrMissingOwner},
		{"missing source", &Ref{OwnerProfileID: "p", Tier: TierPublic}, ErrMissingSource},
		{"bad tier", &Ref{OwnerProfileID: "p", SourceURL: "https://x.example.com/a", Tier: "SECRET"}, ErrInvalidTier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.Register(ctx, tt.ref); err != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
