package query

import (
	"context"
	"time"

	"github.com/alem-hub/curriculum-progress/internal/domain/curriculum"
	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/internal/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON CATALOG QUERIES
// Catalog entries decorated with the learner's lock state, for navigation.
// ══════════════════════════════════════════════════════════════════════════════

// LessonView is one catalog lesson as seen by a learner.
type LessonView struct {
	Lesson curriculum.Lesson
	Locked bool
	Stats  progress.LessonStats
}

// LessonDetail adds the learner's records for the lesson.
type LessonDetail struct {
	LessonView
	Records []progress.Record
}

// ListLessonsQuery asks for the full catalog.
type ListLessonsQuery struct {
	UserID string
}

// GetLessonQuery asks for one lesson.
type GetLessonQuery struct {
	UserID   string
	LessonID int
}

// GetSessionQuery asks for the learner's record on one session slot.
type GetSessionQuery struct {
	UserID        string
	LessonID      int
	SessionNumber int
}

// LessonsHandler serves catalog reads.
type LessonsHandler struct {
	repo progress.Repository
}

// NewLessonsHandler creates a new LessonsHandler.
func NewLessonsHandler(repo progress.Repository) *LessonsHandler {
	return &LessonsHandler{repo: repo}
}

// List returns every lesson with its lock state.
func (h *LessonsHandler) List(ctx context.Context, q ListLessonsQuery) ([]LessonView, error) {
	if err := validateScope("ListLessons", q.UserID, nil); err != nil {
		return nil, err
	}

	stats, _, err := h.userStats(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	idx := stats.Index()
	lessons := curriculum.Lessons()
	views := make([]LessonView, 0, len(lessons))
	for _, l := range lessons {
		views = append(views, LessonView{
			Lesson: l,
			Locked: progress.IsLocked(l.ID, idx),
			Stats:  stats.Lesson(l.ID),
		})
	}
	return views, nil
}

// Get returns one lesson with its lock state and the learner's records.
func (h *LessonsHandler) Get(ctx context.Context, q GetLessonQuery) (*LessonDetail, error) {
	if err := validateScope("GetLesson", q.UserID, nil); err != nil {
		return nil, err
	}

	lesson, ok := curriculum.LessonByID(q.LessonID)
	if !ok {
		return nil, shared.ErrLessonNotFound
	}

	stats, records, err := h.userStats(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	own := make([]progress.Record, 0, curriculum.SessionsPerLesson)
	for _, r := range records {
		if r.LessonID == lesson.ID {
			own = append(own, r)
		}
	}

	return &LessonDetail{
		LessonView: LessonView{
			Lesson: lesson,
			Locked: progress.IsLocked(lesson.ID, stats.Index()),
			Stats:  stats.Lesson(lesson.ID),
		},
		Records: own,
	}, nil
}

// IsLocked answers the navigation guard for one lesson.
func (h *LessonsHandler) IsLocked(ctx context.Context, q GetLessonQuery) (bool, error) {
	if err := validateScope("IsLocked", q.UserID, nil); err != nil {
		return false, err
	}
	if !curriculum.ValidLessonID(q.LessonID) {
		return false, shared.ErrLessonNotFound
	}
	if q.LessonID == curriculum.FirstLessonID {
		return false, nil
	}

	prev := q.LessonID - 1
	records, err := listRecords(ctx, h.repo, q.UserID, progress.Filter{LessonID: &prev})
	if err != nil {
		return false, err
	}
	return progress.IsLocked(q.LessonID, progress.ComputeStats(records).Index()), nil
}

// Session returns the learner's record for one slot. A slot that was never
// written is a not-found error.
func (h *LessonsHandler) Session(ctx context.Context, q GetSessionQuery) (*progress.Record, error) {
	if err := validateScope("GetSession", q.UserID, nil); err != nil {
		return nil, err
	}
	if !curriculum.ValidLessonID(q.LessonID) {
		return nil, shared.ErrLessonNotFound
	}
	if !curriculum.ValidSessionNumber(q.SessionNumber) {
		return nil, shared.NewFieldError("query", "GetSession", "session_number", shared.ErrValueOutOfRange,
			"session_number must be between 1 and 5")
	}

	start := time.Now()
	rec, err := h.repo.Get(ctx, progress.Key{UserID: q.UserID, LessonID: q.LessonID, SessionNumber: q.SessionNumber})
	if shared.IsNotFound(err) {
		metrics.RecordStorageOperation("get", time.Since(start), nil)
		return nil, err
	}
	metrics.RecordStorageOperation("get", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (h *LessonsHandler) userStats(ctx context.Context, userID string) (progress.Stats, []progress.Record, error) {
	records, err := listRecords(ctx, h.repo, userID, progress.Filter{})
	if err != nil {
		return progress.Stats{}, nil, err
	}
	return progress.ComputeStats(records), records, nil
}
