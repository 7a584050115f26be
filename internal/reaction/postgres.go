package reaction

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

// PostgresRepository implements Repository using PostgreSQL with row-locked
// transactions. The UNIQUE(content_id, user_id, type) index on reactions is
// the authoritative guard: even if two transactions race past the
// check-then-act, at most one insert commits and the loser re-runs the
// toggle against the winner's committed state.
type PostgresRepository struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *Metrics
}

// NewPostgresRepository creates a new Postgres-backed reaction repository.
// metrics may be nil.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger, metrics *Metrics) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger, metrics: metrics}
}

// Toggle flips the (contentID, userID, t) reaction inside a transaction and
// returns fresh stats read in the same transaction.
func (r *PostgresRepository) Toggle(ctx context.Context, contentID, userID string, t Type) (*ToggleResult, error) {
	if !t.Valid() {
		return nil, ErrInvalidType
	}
	if userID == "" {
		return nil, ErrMissingUser
	}

	result, err := r.toggleOnce(ctx, contentID, userID, t)
	if err != nil {
		if pqErr, ok := asPQError(err); ok && pqErr.Code == uniqueViolation {
			// A concurrent toggle-on won the insert race. Re-run once: the
			// row now exists, so this attempt becomes a genuine toggle-off.
			if r.metrics != nil {
				r.metrics.RecordConflict()
			}
			r.logger.Debug("toggle insert race, retrying against committed state",
				slog.String("content_id", contentID),
				slog.String("type", string(t)))
			result, err = r.toggleOnce(ctx, contentID, userID, t)
		}
		if err != nil {
			return nil, err
		}
	}

	if r.metrics != nil {
		r.metrics.RecordToggle(t, result.Active)
	}
	return result, nil
}

// toggleOnce performs a single check-then-act toggle transaction.
func (r *PostgresRepository) toggleOnce(ctx context.Context, contentID, userID string, t Type) (*ToggleResult, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin toggle transaction: %w", err)
	}
	// No-op after a successful commit
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("failed to rollback toggle transaction", slog.String("error", err.Error()))
		}
	}()

	// Lock the row if it exists so a concurrent toggle of the same natural
	// key serializes behind this transaction.
	var rowID string
	checkQuery := `
		SELECT id FROM reactions
		WHERE content_id = $1 AND user_id = $2 AND type = $3
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, checkQuery, contentID, userID, string(t)).Scan(&rowID)

	var active bool
	switch {
	case err == sql.ErrNoRows:
		insert := `
			INSERT INTO reactions (id, content_id, user_id, type, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`
		if _, err := tx.ExecContext(ctx, insert, uuid.New().String(), contentID, userID, string(t)); err != nil {
			return nil, fmt.Errorf("failed to insert reaction: %w", err)
		}
		active = true
	case err != nil:
		return nil, fmt.Errorf("failed to check reaction: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE id = $1`, rowID); err != nil {
			return nil, fmt.Errorf("failed to delete reaction: %w", err)
		}
		active = false
	}

	stats, err := statsInTx(ctx, tx, contentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit toggle: %w", err)
	}

	return &ToggleResult{Active: active, Stats: stats}, nil
}

// queryRower covers both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// statsInTx reads per-type counts within the given querier.
func statsInTx(ctx context.Context, q queryRower, contentID string) (Stats, error) {
	stats := NewStats()
	rows, err := q.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM reactions
		WHERE content_id = $1
		GROUP BY type
	`, contentID)
	if err != nil {
		return stats, fmt.Errorf("failed to read reaction stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rawType string
		var count int
		if err := rows.Scan(&rawType, &count); err != nil {
			return stats, fmt.Errorf("failed to scan reaction stats: %w", err)
		}
		t := Type(rawType)
		stats.Counts[t] = count
		if t != TypeLike {
			stats.Total += count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate reaction stats: %w", err)
	}
	return stats, nil
}

// Stats computes per-type counts and the LIKE-excluded total.
func (r *PostgresRepository) Stats(ctx context.Context, contentID string) (Stats, error) {
	return statsInTx(ctx, r.db, contentID)
}

// UserState returns the viewer's own reaction state.
func (r *PostgresRepository) UserState(ctx context.Context, contentID, viewerID string) (UserState, error) {
	state := UserState{Types: []Type{}}
	if viewerID == "" {
		return state, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT type FROM reactions
		WHERE content_id = $1 AND user_id = $2
		ORDER BY type
	`, contentID, viewerID)
	if err != nil {
		return state, fmt.Errorf("failed to read user reaction state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rawType string
		if err := rows.Scan(&rawType); err != nil {
			return state, fmt.Errorf("failed to scan user reaction state: %w", err)
		}
		t := Type(rawType)
		if t == TypeLike {
			state.HasLiked = true
		}
		state.Types = append(state.Types, t)
	}
	return state, rows.Err()
}

// BulkTotals computes LIKE-excluded totals for many content ids in one
// query. Cost is linear in result size, not in round trips.
func (r *PostgresRepository) BulkTotals(ctx context.Context, contentIDs []string) (map[string]int, error) {
	totals := make(map[string]int, len(contentIDs))
	if len(contentIDs) == 0 {
		return totals, nil
	}

	if r.metrics != nil {
		r.metrics.RecordBulkBatch(len(contentIDs))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT content_id, COUNT(*) FROM reactions
		WHERE content_id = ANY($1) AND type <> 'LIKE'
		GROUP BY content_id
	`, pq.Array(contentIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan bulk totals: %w", err)
		}
		totals[id] = count
	}
	return totals, rows.Err()
}

// asPQError unwraps a *pq.Error from a wrapped error chain.
func asPQError(err error) (*pq.Error, bool) {
	for err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return pqErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
