package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocked_FirstLessonNeverLocked(t *testing.T) {
	assert.False(t, IsLocked(1, nil))
	assert.False(t, IsLocked(1, map[int]LessonStats{}))
}

func TestIsLocked_RequiresPreviousLessonComplete(t *testing.T) {
	assert.True(t, IsLocked(2, nil), "absent stats lock the next lesson")

	partial := ComputeStats([]Record{
		rec(1, 1, StatusCompleted, 0),
		rec(1, 2, StatusCompleted, 0),
		rec(1, 3, StatusCompleted, 0),
		rec(1, 4, StatusCompleted, 0),
		rec(1, 5, StatusInProgress, 0),
	})
	assert.True(t, IsLocked(2, partial.Index()))

	full := ComputeStats(completeLesson(1))
	assert.False(t, IsLocked(2, full.Index()))
	assert.True(t, IsLocked(3, full.Index()))
}

func TestIsLocked_RegressionRelocks(t *testing.T) {
	records := completeLesson(1)
	assert.False(t, IsLocked(2, ComputeStats(records).Index()))

	records[2].Status = StatusNotStarted
	assert.True(t, IsLocked(2, ComputeStats(records).Index()))
}

func TestUnlockStates(t *testing.T) {
	states := UnlockStates(ComputeStats(append(completeLesson(1), completeLesson(2)...)).Index())
	require.Len(t, states, 10)

	for _, s := range states {
		assert.Equal(t, s.LessonID > 3, s.Locked, "lesson %d", s.LessonID)
	}
}
