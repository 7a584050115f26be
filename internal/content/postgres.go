package content

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new Postgres-backed content repository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Register persists a content ref. A concurrent registration of the same id
// is resolved by the primary key: on conflict the stored row is returned.
func (r *PostgresRepository) Register(ctx context.Context, ref *Ref) (*Ref, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.ID == "" {
		ref.ID = ResolveID("", ref.OwnerProfileID, ref.SourceURL)
	}

	insert := `
		INSERT INTO contents (id, owner_profile_id, source_url, tier, price_cents, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.db.ExecContext(ctx, insert,
		ref.ID, ref.OwnerProfileID, ref.SourceURL, string(ref.Tier), ref.PriceCents, ref.StorageKey)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			// Already registered; registration is idempotent.
			return r.GetByID(ctx, ref.ID)
		}
		return nil, fmt.Errorf("failed to register content: %w", err)
	}

	r.logger.Info("content registered",
		slog.String("content_id", ref.ID),
		slog.String("owner_profile_id", ref.OwnerProfileID),
		slog.String("tier", string(ref.Tier)))

	return r.GetByID(ctx, ref.ID)
}

// GetByID retrieves a content ref by its canonical id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Ref, error) {
	query := `
		SELECT id, owner_profile_id, source_url, tier, price_cents, storage_key, created_at
		FROM contents WHERE id = $1
	`
	ref := &Ref{}
	var tier string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ref.ID, &ref.OwnerProfileID, &ref.SourceURL, &tier, &ref.PriceCents, &ref.StorageKey, &ref.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	ref.Tier = Tier(tier)
	return ref, nil
}

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = pq.ErrorCode("23505")
