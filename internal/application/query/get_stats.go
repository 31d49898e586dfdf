package query

import (
	"context"

	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStatsQuery asks for a learner's derived stats and lock states.
type GetStatsQuery struct {
	UserID string

	// LessonID narrows ByLesson to one lesson. Overall and Unlock always
	// cover the whole catalog.
	LessonID *int
}

// Validate checks the query parameters.
func (q GetStatsQuery) Validate() error {
	return validateScope("GetStats", q.UserID, q.LessonID)
}

// GetStatsResult is the derived view of a learner's progress.
type GetStatsResult struct {
	ByLesson []progress.LessonStats
	Overall  progress.OverallStats
	Unlock   []progress.UnlockState
}

// GetStatsHandler handles GetStatsQuery.
type GetStatsHandler struct {
	repo progress.Repository
}

// NewGetStatsHandler creates a new GetStatsHandler.
func NewGetStatsHandler(repo progress.Repository) *GetStatsHandler {
	return &GetStatsHandler{repo: repo}
}

// Handle scans every record of the learner and derives stats and lock states.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*GetStatsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	records, err := listRecords(ctx, h.repo, q.UserID, progress.Filter{})
	if err != nil {
		return nil, err
	}

	stats := progress.ComputeStats(records)
	result := &GetStatsResult{
		ByLesson: stats.ByLesson,
		Overall:  stats.Overall,
		Unlock:   progress.UnlockStates(stats.Index()),
	}

	if q.LessonID != nil {
		filtered := make([]progress.LessonStats, 0, 1)
		for _, ls := range stats.ByLesson {
			if ls.LessonID == *q.LessonID {
				filtered = append(filtered, ls)
			}
		}
		result.ByLesson = filtered
	}

	return result, nil
}
