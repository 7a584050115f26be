package reaction

import "context"

// ToggleResult reports the outcome of a toggle together with fresh stats
// read inside the same transaction (read-after-write consistent).
type ToggleResult struct {
	Active bool  // true if the toggle turned the reaction on
	Stats  Stats // post-toggle stats for the content
}

// Repository defines the interface for reaction state operations.
//
// Toggle must behave as delete-if-exists else insert under an atomic
// conditional write: two concurrent toggles of the same (content, user,
// type) key resolve deterministically, never leaving two rows or a count
// that drifts from the rows. The natural key doubles as the idempotency
// key for client retries.
type Repository interface {
	// Toggle flips the (contentID, userID, t) reaction and returns the
	// resulting state plus fresh stats for the content.
	Toggle(ctx context.Context, contentID, userID string, t Type) (*ToggleResult, error)

	// Stats computes per-type counts and the LIKE-excluded total for one
	// content id. Unknown content yields empty stats, not an error.
	Stats(ctx context.Context, contentID string) (Stats, error)

	// UserState returns the viewer's own reaction state for one content id.
	// An empty viewerID yields the zero state.
	UserState(ctx context.Context, contentID, viewerID string) (UserState, error)

	// BulkTotals computes LIKE-excluded totals for many content ids in one
	// pass. Unknown ids are simply absent from the result; an empty input
	// yields an empty map. No read-your-own-write guarantee is made.
	BulkTotals(ctx context.Context, contentIDs []string) (map[string]int, error)
}
