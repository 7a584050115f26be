package unlock

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = pq.ErrorCode("23505")

// PostgresRepository implements Repository using PostgreSQL. The
// UNIQUE(user_id, scope_kind, scope_target) index on unlock_grants makes
// concurrent duplicate purchase confirmations collapse onto one row.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new Postgres-backed unlock repository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Grant records an unlock, resolving duplicates via the unique index.
func (r *PostgresRepository) Grant(ctx context.Context, userID string, scope Scope, priceCents int64) (*Grant, bool, error) {
	if userID == "" {
		return nil, false, ErrMissingUser
	}
	if !scope.Valid() {
		return nil, false, ErrInvalidScope
	}
	if priceCents < 0 {
		return nil, false, ErrNegativePrice
	}

	insert := `
		INSERT INTO unlock_grants (id, user_id, scope_kind, scope_target, price_cents, granted_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	id := uuid.New().String()
	_, err := r.db.ExecContext(ctx, insert, id, userID, string(scope.Kind), scope.Target, priceCents)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			// Already held; return the existing grant. The caller must not
			// charge again.
			existing, getErr := r.GetByUserAndScope(ctx, userID, scope)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to load existing grant after conflict: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert unlock grant: %w", err)
	}

	r.logger.Info("unlock granted",
		slog.String("user_id", userID),
		slog.String("scope_kind", string(scope.Kind)),
		slog.String("scope_target", scope.Target),
		slog.Int64("price_cents", priceCents))

	grant, err := r.GetByUserAndScope(ctx, userID, scope)
	if err != nil {
		return nil, false, err
	}
	return grant, true, nil
}

// GetByUserAndScope retrieves a grant by its natural key.
func (r *PostgresRepository) GetByUserAndScope(ctx context.Context, userID string, scope Scope) (*Grant, error) {
	query := `
		SELECT id, user_id, scope_kind, scope_target, price_cents, granted_at
		FROM unlock_grants
		WHERE user_id = $1 AND scope_kind = $2 AND scope_target = $3
	`
	grant := &Grant{}
	var kind string
	err := r.db.QueryRowContext(ctx, query, userID, string(scope.Kind), scope.Target).Scan(
		&grant.ID, &grant.UserID, &kind, &grant.Scope.Target, &grant.PriceCents, &grant.GrantedAt)
	if err == sql.ErrNoRows {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unlock grant: %w", err)
	}
	grant.Scope.Kind = ScopeKind(kind)
	return grant, nil
}

// HasUnlock reports whether the user holds a grant covering the content.
func (r *PostgresRepository) HasUnlock(ctx context.Context, userID, contentID, ownerProfileID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM unlock_grants
			WHERE user_id = $1
			  AND ((scope_kind = $2 AND scope_target = $3)
			    OR (scope_kind = $4 AND scope_target = $5))
		)
	`
	err := r.db.QueryRowContext(ctx, query,
		userID,
		string(ScopeSingleContent), contentID,
		string(ScopeEntireGallery), ownerProfileID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	return exists, nil
}
