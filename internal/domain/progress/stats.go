package progress

import (
	"sort"

	"github.com/alem-hub/curriculum-progress/internal/domain/curriculum"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// ══════════════════════════════════════════════════════════════════════════════

// LessonStats summarises a learner's records for one lesson.
type LessonStats struct {
	LessonID              int
	TotalSessions         int
	CompletedSessions     int
	ProgressPercentage    int
	TotalTimeSpentSeconds int
}

// IsCompleted reports whether every session of the lesson is completed.
func (s LessonStats) IsCompleted() bool {
	return s.CompletedSessions == curriculum.SessionsPerLesson
}

// OverallStats summarises a learner's records across the catalog.
type OverallStats struct {
	TotalLessons              int
	CompletedLessons          int
	InProgressLessons         int
	TotalSessionsCompleted    int
	TotalTimeSpentSeconds     int
	OverallProgressPercentage int
}

// Stats is the full derived view of a learner's progress.
type Stats struct {
	// ByLesson holds one entry per lesson with at least one record, ordered by lesson id.
	ByLesson []LessonStats
	Overall  OverallStats
}

// Index returns ByLesson keyed by lesson id.
func (s Stats) Index() map[int]LessonStats {
	idx := make(map[int]LessonStats, len(s.ByLesson))
	for _, ls := range s.ByLesson {
		idx[ls.LessonID] = ls
	}
	return idx
}

// Lesson returns the stats entry for a lesson, or a zero-progress entry when
// the learner has no records for it.
func (s Stats) Lesson(lessonID int) LessonStats {
	for _, ls := range s.ByLesson {
		if ls.LessonID == lessonID {
			return ls
		}
	}
	return LessonStats{LessonID: lessonID, TotalSessions: curriculum.SessionsPerLesson}
}

// ComputeStats derives per-lesson and overall stats from a learner's full set
// of records. Lessons without records are absent from ByLesson. Records outside
// the catalog ranges are ignored.
func ComputeStats(records []Record) Stats {
	type acc struct {
		completed map[int]struct{}
		seconds   int
	}
	grouped := make(map[int]*acc)

	for _, r := range records {
		if !curriculum.ValidLessonID(r.LessonID) || !curriculum.ValidSessionNumber(r.SessionNumber) {
			continue
		}
		a, ok := grouped[r.LessonID]
		if !ok {
			a = &acc{completed: make(map[int]struct{})}
			grouped[r.LessonID] = a
		}
		if r.Status == StatusCompleted {
			a.completed[r.SessionNumber] = struct{}{}
		}
		if r.TimeSpentSeconds > 0 {
			a.seconds += r.TimeSpentSeconds
		}
	}

	stats := Stats{
		ByLesson: make([]LessonStats, 0, len(grouped)),
		Overall:  OverallStats{TotalLessons: curriculum.LessonCount},
	}

	for lessonID, a := range grouped {
		completed := len(a.completed)
		ls := LessonStats{
			LessonID:              lessonID,
			TotalSessions:         curriculum.SessionsPerLesson,
			CompletedSessions:     completed,
			ProgressPercentage:    Percentage(completed, curriculum.SessionsPerLesson),
			TotalTimeSpentSeconds: a.seconds,
		}
		stats.ByLesson = append(stats.ByLesson, ls)

		switch {
		case ls.IsCompleted():
			stats.Overall.CompletedLessons++
		case completed > 0:
			stats.Overall.InProgressLessons++
		}
		stats.Overall.TotalSessionsCompleted += completed
		stats.Overall.TotalTimeSpentSeconds += a.seconds
	}

	sort.Slice(stats.ByLesson, func(i, j int) bool {
		return stats.ByLesson[i].LessonID < stats.ByLesson[j].LessonID
	})

	stats.Overall.OverallProgressPercentage = Percentage(
		stats.Overall.TotalSessionsCompleted, curriculum.TotalSessions)

	return stats
}

// Percentage returns round(part/whole*100) with halves rounded up, clamped to [0,100].
// It reaches 100 only when part equals whole.
func Percentage(part, whole int) int {
	if whole <= 0 || part <= 0 {
		return 0
	}
	if part > whole {
		part = whole
	}
	return (part*200 + whole) / (2 * whole)
}
