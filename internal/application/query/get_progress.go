// Package query contains read operations (CQRS - Queries).
// Every query reads fresh from the repository; nothing derived is cached.
package query

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/curriculum-progress/internal/domain/curriculum"
	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/internal/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery lists a learner's records, optionally for one lesson.
type GetProgressQuery struct {
	UserID   string
	LessonID *int
}

// Validate checks the query parameters.
func (q GetProgressQuery) Validate() error {
	return validateScope("GetProgress", q.UserID, q.LessonID)
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	repo progress.Repository
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(repo progress.Repository) *GetProgressHandler {
	return &GetProgressHandler{repo: repo}
}

// Handle returns the records ordered by (lesson_id, session_number).
// A learner without records gets an empty slice.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) ([]progress.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return listRecords(ctx, h.repo, q.UserID, progress.Filter{LessonID: q.LessonID})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func validateScope(op, userID string, lessonID *int) error {
	if strings.TrimSpace(userID) == "" {
		return shared.NewFieldError("query", op, "user_id", shared.ErrEmptyValue, "user_id is required")
	}
	if lessonID != nil && !curriculum.ValidLessonID(*lessonID) {
		return shared.NewFieldError("query", op, "lesson_id", shared.ErrValueOutOfRange,
			"lesson_id must be between 1 and 10")
	}
	return nil
}

func listRecords(ctx context.Context, repo progress.Repository, userID string, filter progress.Filter) ([]progress.Record, error) {
	start := time.Now()
	records, err := repo.List(ctx, userID, filter)
	metrics.RecordStorageOperation("list", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []progress.Record{}
	}
	return records, nil
}
