package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/persistence/memory"
)

const user = "learner-1"

func seed(t *testing.T, repo *memory.ProgressRepository, lesson int, sessions int, status progress.Status) {
	t.Helper()
	for s := 1; s <= sessions; s++ {
		_, err := repo.Upsert(context.Background(), progress.Change{
			Key:    progress.Key{UserID: user, LessonID: lesson, SessionNumber: s},
			Status: status,
			At:     time.Now(),
		})
		require.NoError(t, err)
	}
}

func lessonPtr(v int) *int { return &v }

func TestGetProgress_FilterAndValidation(t *testing.T) {
	repo := memory.NewProgressRepository()
	seed(t, repo, 1, 5, progress.StatusCompleted)
	seed(t, repo, 2, 2, progress.StatusInProgress)
	h := NewGetProgressHandler(repo)

	all, err := h.Handle(context.Background(), GetProgressQuery{UserID: user})
	require.NoError(t, err)
	assert.Len(t, all, 7)

	one, err := h.Handle(context.Background(), GetProgressQuery{UserID: user, LessonID: lessonPtr(2)})
	require.NoError(t, err)
	require.Len(t, one, 2)
	assert.Equal(t, 1, one[0].SessionNumber)
	assert.Equal(t, 2, one[1].SessionNumber)

	_, err = h.Handle(context.Background(), GetProgressQuery{UserID: user, LessonID: lessonPtr(11)})
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, "lesson_id", shared.FieldOf(err))

	_, err = h.Handle(context.Background(), GetProgressQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestGetStats_LessonFilterKeepsOverall(t *testing.T) {
	repo := memory.NewProgressRepository()
	seed(t, repo, 1, 5, progress.StatusCompleted)
	seed(t, repo, 2, 1, progress.StatusCompleted)
	h := NewGetStatsHandler(repo)

	res, err := h.Handle(context.Background(), GetStatsQuery{UserID: user, LessonID: lessonPtr(2)})
	require.NoError(t, err)

	require.Len(t, res.ByLesson, 1)
	assert.Equal(t, 2, res.ByLesson[0].LessonID)
	assert.Equal(t, 20, res.ByLesson[0].ProgressPercentage)
	assert.Equal(t, 6, res.Overall.TotalSessionsCompleted)
	assert.Equal(t, 12, res.Overall.OverallProgressPercentage)
	require.Len(t, res.Unlock, 10)

	empty, err := h.Handle(context.Background(), GetStatsQuery{UserID: user, LessonID: lessonPtr(9)})
	require.NoError(t, err)
	assert.NotNil(t, empty.ByLesson)
	assert.Empty(t, empty.ByLesson)
}

func TestGetStats_StorageError(t *testing.T) {
	repo := memory.NewProgressRepository()
	repo.FailWith(errors.New("timeout"))

	_, err := NewGetStatsHandler(repo).Handle(context.Background(), GetStatsQuery{UserID: user})
	assert.True(t, shared.IsStorage(err))
}

func TestLessonsHandler_List(t *testing.T) {
	repo := memory.NewProgressRepository()
	seed(t, repo, 1, 5, progress.StatusCompleted)
	seed(t, repo, 2, 3, progress.StatusCompleted)
	h := NewLessonsHandler(repo)

	views, err := h.List(context.Background(), ListLessonsQuery{UserID: user})
	require.NoError(t, err)
	require.Len(t, views, 10)

	assert.False(t, views[0].Locked)
	assert.False(t, views[1].Locked)
	assert.True(t, views[2].Locked)
	assert.Equal(t, 60, views[1].Stats.ProgressPercentage)
	assert.Zero(t, views[5].Stats.CompletedSessions)
	assert.Len(t, views[0].Lesson.Sessions, 5)
}

func TestLessonsHandler_Get(t *testing.T) {
	repo := memory.NewProgressRepository()
	seed(t, repo, 1, 2, progress.StatusInProgress)
	h := NewLessonsHandler(repo)

	detail, err := h.Get(context.Background(), GetLessonQuery{UserID: user, LessonID: 1})
	require.NoError(t, err)
	assert.False(t, detail.Locked)
	assert.Len(t, detail.Records, 2)
	assert.Equal(t, "What Is Philosophy", detail.Lesson.Title)

	locked, err := h.Get(context.Background(), GetLessonQuery{UserID: user, LessonID: 2})
	require.NoError(t, err)
	assert.True(t, locked.Locked)
	assert.Empty(t, locked.Records)

	_, err = h.Get(context.Background(), GetLessonQuery{UserID: user, LessonID: 42})
	assert.True(t, shared.IsNotFound(err))
}

func TestLessonsHandler_IsLocked(t *testing.T) {
	repo := memory.NewProgressRepository()
	h := NewLessonsHandler(repo)
	ctx := context.Background()

	locked, err := h.IsLocked(ctx, GetLessonQuery{UserID: user, LessonID: 1})
	require.NoError(t, err)
	assert.False(t, locked)

	locked, err = h.IsLocked(ctx, GetLessonQuery{UserID: user, LessonID: 2})
	require.NoError(t, err)
	assert.True(t, locked)

	seed(t, repo, 1, 5, progress.StatusCompleted)
	locked, err = h.IsLocked(ctx, GetLessonQuery{UserID: user, LessonID: 2})
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = h.IsLocked(ctx, GetLessonQuery{UserID: user, LessonID: 0})
	assert.True(t, shared.IsNotFound(err))
}

func TestLessonsHandler_Session(t *testing.T) {
	repo := memory.NewProgressRepository()
	seed(t, repo, 3, 2, progress.StatusInProgress)
	h := NewLessonsHandler(repo)
	ctx := context.Background()

	rec, err := h.Session(ctx, GetSessionQuery{UserID: user, LessonID: 3, SessionNumber: 2})
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, rec.Status)
	assert.Equal(t, 2, rec.SessionNumber)

	_, err = h.Session(ctx, GetSessionQuery{UserID: user, LessonID: 3, SessionNumber: 4})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Session(ctx, GetSessionQuery{UserID: user, LessonID: 11, SessionNumber: 1})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Session(ctx, GetSessionQuery{UserID: user, LessonID: 3, SessionNumber: 6})
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, "session_number", shared.FieldOf(err))
}
