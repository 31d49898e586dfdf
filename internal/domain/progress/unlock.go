package progress

import "github.com/alem-hub/curriculum-progress/internal/domain/curriculum"

// UnlockState is the derived access state of one lesson for one learner.
// It is never stored.
type UnlockState struct {
	LessonID int
	Locked   bool
}

// IsLocked reports whether a lesson is locked given the learner's per-lesson
// stats. Lesson 1 is never locked; lesson N is locked until lesson N-1 has
// every session completed.
func IsLocked(lessonID int, byLesson map[int]LessonStats) bool {
	if lessonID <= curriculum.FirstLessonID {
		return false
	}
	prev, ok := byLesson[lessonID-1]
	return !ok || prev.CompletedSessions < curriculum.SessionsPerLesson
}

// UnlockStates evaluates IsLocked for every catalog lesson in order.
func UnlockStates(byLesson map[int]LessonStats) []UnlockState {
	states := make([]UnlockState, 0, curriculum.LessonCount)
	for id := curriculum.FirstLessonID; id <= curriculum.LastLessonID; id++ {
		states = append(states, UnlockState{LessonID: id, Locked: IsLocked(id, byLesson)})
	}
	return states
}
