package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/seo-audit/internal/domain"
)

// ErrSnapshotNotFound is returned when no snapshot matches a lookup.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// snapshotSelectColumns lists columns for SELECT queries on snapshots.
const snapshotSelectColumns = `id, status, snapshot_type, time_start, time_end,
	traffic_median, require_update, quick_update_traffic_allowed,
	created_at, updated_at`

// SnapshotRepository handles database operations for audit snapshots.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts a new snapshot and fills in the generated fields.
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *domain.Snapshot) error {
	query := `
		INSERT INTO snapshots (status, snapshot_type, require_update)
		VALUES ($1, $2, $3)
		RETURNING id, time_start, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		snapshot.Status,
		snapshot.Type,
		snapshot.RequireUpdate,
	).Scan(&snapshot.ID, &snapshot.TimeStart, &snapshot.CreatedAt, &snapshot.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	return nil
}

// GetByID retrieves a snapshot by its ID.
func (r *SnapshotRepository) GetByID(ctx context.Context, id int64) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotSelectColumns + ` FROM snapshots WHERE id = $1`

	var snapshot domain.Snapshot
	if err := r.db.GetContext(ctx, &snapshot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return &snapshot, nil
}

// GetByStatus retrieves the single snapshot with the given status.
// Returns ErrSnapshotNotFound when there is none.
func (r *SnapshotRepository) GetByStatus(
	ctx context.Context,
	status domain.SnapshotStatus,
) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotSelectColumns + ` FROM snapshots
		WHERE status = $1 ORDER BY id DESC LIMIT 1`

	var snapshot domain.Snapshot
	if err := r.db.GetContext(ctx, &snapshot, query, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot by status: %w", err)
	}

	return &snapshot, nil
}

// GetNew returns the snapshot currently being populated, if any.
func (r *SnapshotRepository) GetNew(ctx context.Context) (*domain.Snapshot, error) {
	return r.GetByStatus(ctx, domain.SnapshotStatusNew)
}

// GetCurrent returns the snapshot shown by default, if any.
func (r *SnapshotRepository) GetCurrent(ctx context.Context) (*domain.Snapshot, error) {
	return r.GetByStatus(ctx, domain.SnapshotStatusCurrent)
}

// GetLatest returns the most recent snapshot of any status.
func (r *SnapshotRepository) GetLatest(ctx context.Context) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotSelectColumns + ` FROM snapshots ORDER BY id DESC LIMIT 1`

	var snapshot domain.Snapshot
	if err := r.db.GetContext(ctx, &snapshot, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return &snapshot, nil
}

// PromoteToCurrent finalizes a new snapshot inside one transaction: the
// existing current snapshot (if any) moves to old, the given snapshot
// becomes current with time_end stamped, require_update cleared and its type
// set to the finished variant.
func (r *SnapshotRepository) PromoteToCurrent(
	ctx context.Context,
	id int64,
	finishedType domain.SnapshotType,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin promote transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	demote := `UPDATE snapshots SET status = $1, updated_at = NOW() WHERE status = $2`
	if _, execErr := tx.ExecContext(
		ctx, demote, domain.SnapshotStatusOld, domain.SnapshotStatusCurrent,
	); execErr != nil {
		return fmt.Errorf("failed to demote current snapshot: %w", execErr)
	}

	promote := `
		UPDATE snapshots
		SET status = $2, snapshot_type = $3, time_end = NOW(),
			require_update = FALSE, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	result, execErr := tx.ExecContext(
		ctx, promote, id, domain.SnapshotStatusCurrent, finishedType, domain.SnapshotStatusNew,
	)
	if rowsErr := execRequireRows(result, execErr, ErrSnapshotNotFound); rowsErr != nil {
		return fmt.Errorf("failed to promote snapshot %d: %w", id, rowsErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit promote transaction: %w", commitErr)
	}

	return nil
}

// SetTrafficMedian persists the computed traffic median for a snapshot.
func (r *SnapshotRepository) SetTrafficMedian(ctx context.Context, id int64, median float64) error {
	query := `UPDATE snapshots SET traffic_median = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, median)
	return execRequireRows(result, err, ErrSnapshotNotFound)
}

// GetTrafficMedian reads the persisted traffic median. Nil means the median
// has not been computed yet.
func (r *SnapshotRepository) GetTrafficMedian(ctx context.Context, id int64) (*float64, error) {
	query := `SELECT traffic_median FROM snapshots WHERE id = $1`

	var median *float64
	if err := r.db.GetContext(ctx, &median, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get traffic median: %w", err)
	}

	return median, nil
}

// SetRequireUpdate sets or clears the snapshot's require_update flag.
func (r *SnapshotRepository) SetRequireUpdate(ctx context.Context, id int64, require bool) error {
	query := `UPDATE snapshots SET require_update = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, require)
	return execRequireRows(result, err, ErrSnapshotNotFound)
}

// SetType updates the snapshot's type, e.g. when a stalled scheduled audit
// is restarted.
func (r *SnapshotRepository) SetType(
	ctx context.Context,
	id int64,
	snapshotType domain.SnapshotType,
) error {
	query := `UPDATE snapshots SET snapshot_type = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, snapshotType)
	return execRequireRows(result, err, ErrSnapshotNotFound)
}
