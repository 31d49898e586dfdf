package postgres

// Migrations returns all embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_progress_records",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "index_progress_completed",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESS RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One row per (user, lesson, session). The primary key is the natural key
-- the upsert conflicts on.
CREATE TABLE IF NOT EXISTS progress_records (
    user_id TEXT NOT NULL,
    lesson_id SMALLINT NOT NULL,
    session_number SMALLINT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'not_started',
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    time_spent_seconds INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, lesson_id, session_number),

    CONSTRAINT valid_user CHECK (length(user_id) > 0),
    CONSTRAINT valid_lesson CHECK (lesson_id BETWEEN 1 AND 10),
    CONSTRAINT valid_session CHECK (session_number BETWEEN 1 AND 5),
    CONSTRAINT valid_status CHECK (status IN ('not_started', 'in_progress', 'completed')),
    CONSTRAINT valid_time_spent CHECK (time_spent_seconds >= 0),
    CONSTRAINT completed_at_matches_status CHECK ((status = 'completed') = (completed_at IS NOT NULL))
);
`

const migration001Down = `
DROP TABLE IF EXISTS progress_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: COMPLETED INDEX
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Speeds up per-lesson completion counts for a learner.
CREATE INDEX IF NOT EXISTS idx_progress_completed
    ON progress_records (user_id, lesson_id)
    WHERE status = 'completed';
`

const migration002Down = `
DROP INDEX IF EXISTS idx_progress_completed;
`
