// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/alem-hub/curriculum-progress/internal/domain/curriculum"
	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/internal/metrics"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT PROGRESS COMMAND
// Records the status of one session for the authenticated learner.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertProgressCommand is a status update for one session slot.
type UpsertProgressCommand struct {
	// UserID comes from the authenticator, never from the request body.
	UserID string

	LessonID      int
	SessionNumber int
	Status        string

	// TimeSpentSeconds is the learner's current total for the session.
	// Nil keeps the stored value.
	TimeSpentSeconds *int
}

// toChange converts the command into a domain change stamped with at.
func (c UpsertProgressCommand) toChange(at time.Time) progress.Change {
	return progress.Change{
		Key: progress.Key{
			UserID:        c.UserID,
			LessonID:      c.LessonID,
			SessionNumber: c.SessionNumber,
		},
		Status:           progress.Status(c.Status),
		TimeSpentSeconds: c.TimeSpentSeconds,
		At:               at,
	}
}

// UpsertProgressResult is the stored record after the write.
type UpsertProgressResult struct {
	Record progress.Record

	// LessonCompleted is true when this write left the lesson with every
	// session completed.
	LessonCompleted bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpsertProgressHandler handles the UpsertProgressCommand.
type UpsertProgressHandler struct {
	repo      progress.Repository
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewUpsertProgressHandler creates a new UpsertProgressHandler.
// A nil publisher discards events.
func NewUpsertProgressHandler(
	repo progress.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *UpsertProgressHandler {
	if publisher == nil {
		publisher = shared.NoopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &UpsertProgressHandler{
		repo:      repo,
		publisher: publisher,
		log:       log.With(logger.Component("upsert_progress")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Used by tests.
func (h *UpsertProgressHandler) WithClock(now func() time.Time) *UpsertProgressHandler {
	h.now = now
	return h
}

// Handle validates the command and performs a single atomic upsert.
// Storage failures are returned as-is and never retried.
func (h *UpsertProgressHandler) Handle(ctx context.Context, cmd UpsertProgressCommand) (*UpsertProgressResult, error) {
	change := cmd.toChange(h.now())

	if err := change.Validate(); err != nil {
		metrics.RecordProgressRejected(shared.FieldOf(err))
		return nil, err
	}

	start := time.Now()
	rec, err := h.repo.Upsert(ctx, change)
	metrics.RecordStorageOperation("upsert", time.Since(start), err)
	if err != nil {
		h.log.Error("failed to upsert progress",
			logger.UserID(cmd.UserID),
			logger.LessonID(cmd.LessonID),
			logger.SessionNumber(cmd.SessionNumber),
			logger.Err(err),
		)
		return nil, err
	}

	result := &UpsertProgressResult{Record: *rec}

	h.publish(shared.NewProgressRecordedEvent(
		rec.UserID, rec.LessonID, rec.SessionNumber, string(rec.Status), rec.TimeSpentSeconds, rec.UpdatedAt,
	))

	if rec.Status == progress.StatusCompleted {
		result.LessonCompleted = h.lessonCompleted(ctx, rec)
	}

	return result, nil
}

// lessonCompleted re-reads the lesson after a completed write. The write has
// already committed, so a failing read is only logged.
func (h *UpsertProgressHandler) lessonCompleted(ctx context.Context, rec *progress.Record) bool {
	lessonID := rec.LessonID
	records, err := h.repo.List(ctx, rec.UserID, progress.Filter{LessonID: &lessonID})
	if err != nil {
		h.log.Warn("failed to check lesson completion",
			logger.UserID(rec.UserID),
			logger.LessonID(lessonID),
			logger.Err(err),
		)
		return false
	}

	stats := progress.ComputeStats(records).Lesson(lessonID)
	if !stats.IsCompleted() {
		return false
	}

	unlocked := 0
	if lessonID < curriculum.LastLessonID {
		unlocked = lessonID + 1
	}
	h.publish(shared.NewLessonCompletedEvent(rec.UserID, lessonID, unlocked, rec.UpdatedAt))
	return true
}

func (h *UpsertProgressHandler) publish(event shared.Event) {
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}
