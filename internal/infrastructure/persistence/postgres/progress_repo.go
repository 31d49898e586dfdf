package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	db Querier
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{db: conn}
}

// NewProgressRepositoryWith creates a repository over any Querier, such as a pgx.Tx.
func NewProgressRepositoryWith(db Querier) *ProgressRepository {
	return &ProgressRepository{db: db}
}

var _ progress.Repository = (*ProgressRepository)(nil)

const progressColumns = `user_id, lesson_id, session_number, status, started_at,
	completed_at, time_spent_seconds, updated_at`

// upsertProgressSQL merges a change in a single statement so concurrent
// writers to the same key serialise on the row lock. The ON CONFLICT branch
// mirrors progress.Merge: the first start time wins, completed_at follows
// the new status and time spent is replaced only when supplied.
const upsertProgressSQL = `
	INSERT INTO progress_records AS p (` + progressColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::integer, 0), $8)
	ON CONFLICT (user_id, lesson_id, session_number) DO UPDATE SET
		status = EXCLUDED.status,
		started_at = COALESCE(p.started_at, EXCLUDED.started_at),
		completed_at = EXCLUDED.completed_at,
		time_spent_seconds = COALESCE($7::integer, p.time_spent_seconds),
		updated_at = EXCLUDED.updated_at
	RETURNING ` + progressColumns

// ─────────────────────────────────────────────────────────────────────────────
// Operations
// ─────────────────────────────────────────────────────────────────────────────

// Upsert implements progress.Repository.
func (r *ProgressRepository) Upsert(ctx context.Context, change progress.Change) (*progress.Record, error) {
	// Merging onto an absent record yields exactly the values an insert
	// needs; the conflict branch handles the existing row.
	fresh := progress.Merge(nil, change)

	row := r.db.QueryRow(ctx, upsertProgressSQL,
		fresh.UserID,
		fresh.LessonID,
		fresh.SessionNumber,
		string(fresh.Status),
		fresh.StartedAt,
		fresh.CompletedAt,
		change.TimeSpentSeconds,
		fresh.UpdatedAt,
	)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, shared.StorageFailure("progress", "Upsert", err)
	}
	return rec, nil
}

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, key progress.Key) (*progress.Record, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE user_id = $1 AND lesson_id = $2 AND session_number = $3
	`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, key.UserID, key.LessonID, key.SessionNumber))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("progress", "Get", shared.ErrNotFound, "progress record not found")
		}
		return nil, shared.StorageFailure("progress", "Get", err)
	}
	return rec, nil
}

// List implements progress.Repository.
func (r *ProgressRepository) List(ctx context.Context, userID string, filter progress.Filter) ([]progress.Record, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM progress_records
		WHERE user_id = $1 AND ($2::smallint IS NULL OR lesson_id = $2::smallint)
		ORDER BY lesson_id, session_number
	`

	rows, err := r.db.Query(ctx, query, userID, filter.LessonID)
	if err != nil {
		return nil, shared.StorageFailure("progress", "List", err)
	}
	defer rows.Close()

	records := make([]progress.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, shared.StorageFailure("progress", "List", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageFailure("progress", "List", err)
	}

	return records, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanRecord(row pgx.Row) (*progress.Record, error) {
	var (
		rec    progress.Record
		status string
	)

	err := row.Scan(
		&rec.UserID,
		&rec.LessonID,
		&rec.SessionNumber,
		&status,
		&rec.StartedAt,
		&rec.CompletedAt,
		&rec.TimeSpentSeconds,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, ok := progress.ParseStatus(status)
	if !ok {
		return nil, errors.New("unknown status in progress_records: " + status)
	}
	rec.Status = parsed

	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if rec.StartedAt != nil {
		t := rec.StartedAt.UTC()
		rec.StartedAt = &t
	}
	if rec.CompletedAt != nil {
		t := rec.CompletedAt.UTC()
		rec.CompletedAt = &t
	}

	return &rec, nil
}
