package service

import (
	"context"
	"testing"

	"credahead_backend/internal/config"
	"credahead_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathwayByID(items []PathwayLesson) map[string]PathwayLesson {
	out := make(map[string]PathwayLesson, len(items))
	for _, it := range items {
		out[it.LessonID] = it
	}
	return out
}

func TestBuildPathway(t *testing.T) {
	lessons := []model.Lesson{
		{LessonID: "a1", Level: 1},
		{LessonID: "a2", Level: 1},
		{LessonID: "b1", Level: 2, Prerequisites: []string{"a1", "a2"}},
		{LessonID: "c1", Level: 3},
	}

	t.Run("fresh learner", func(t *testing.T) {
		got := pathwayByID(BuildPathway(lessons, nil, 1))
		assert.Equal(t, LessonAvailable, got["a1"].Status)
		assert.Equal(t, LessonAvailable, got["a2"].Status)

		assert.Equal(t, LessonLocked, got["b1"].Status)
		assert.True(t, got["b1"].IsLocked)
		assert.Equal(t, "Complete all Level 1 lessons first", got["b1"].LockReason)
		assert.Equal(t, "Complete all Level 1 lessons first", got["c1"].LockReason)
	})

	t.Run("level partly done", func(t *testing.T) {
		progress := []model.UserProgress{{LessonID: "a1", Completed: true, Score: 8}}
		got := pathwayByID(BuildPathway(lessons, progress, 1))
		assert.Equal(t, LessonCompleted, got["a1"].Status)
		require.NotNil(t, got["a1"].Progress)
		assert.Equal(t, 8, got["a1"].Progress.Score)
		assert.Equal(t, LessonLocked, got["b1"].Status)
	})

	t.Run("level done opens next level", func(t *testing.T) {
		progress := []model.UserProgress{
			{LessonID: "a1", Completed: true},
			{LessonID: "a2", Completed: true},
		}
		got := pathwayByID(BuildPathway(lessons, progress, 1))
		assert.Equal(t, LessonAvailable, got["b1"].Status)
		assert.False(t, got["b1"].IsLocked)
		assert.Empty(t, got["b1"].LockReason)
		assert.Equal(t, LessonLocked, got["c1"].Status)
	})

	t.Run("prerequisites lock within reach", func(t *testing.T) {
		progress := []model.UserProgress{{LessonID: "a2", Completed: false}}
		got := pathwayByID(BuildPathway(lessons, progress, 2))
		assert.Equal(t, LessonLocked, got["b1"].Status)
		assert.Equal(t, "Prerequisites required: a1, a2", got["b1"].LockReason)
		assert.Equal(t, LessonAvailable, got["a2"].Status)
		assert.Equal(t, LessonLocked, got["c1"].Status, "level 2 not finished")
	})

	t.Run("level below range treated as 1", func(t *testing.T) {
		got := pathwayByID(BuildPathway(lessons, nil, 0))
		assert.Equal(t, LessonAvailable, got["a1"].Status)
		assert.Equal(t, "Complete all Level 1 lessons first", got["b1"].LockReason)
	})
}

func TestHighestCompletedLevel(t *testing.T) {
	assert.Zero(t, HighestCompletedLevel(nil))
	assert.Equal(t, 7, HighestCompletedLevel([]model.Lesson{{Level: 3}, {Level: 7}, {Level: 5}}))
}

func TestPathwayService_RecalculateLiteracyLevel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.DefaultEngineConfig())
	user := env.createUser(t, "path@example.com")
	require.NoError(t, env.users.UpdateLiteracy(ctx, user.ID, 6, 7, true))

	// 无已完成课程时保持不变
	level, err := env.pathway.RecalculateLiteracyLevel(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, level)
	u, err := env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, u.LiteracyLevel)
	assert.True(t, u.AssessmentTaken)

	require.NoError(t, env.progress.Save(ctx, &model.UserProgress{UserID: user.ID, LessonID: "L02", Completed: true, Score: 9, Attempts: 1}))
	require.NoError(t, env.progress.Save(ctx, &model.UserProgress{UserID: user.ID, LessonID: "L05", Completed: false, Score: 3, Attempts: 1}))

	level, err = env.pathway.RecalculateLiteracyLevel(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, level)
	u, err = env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, u.LiteracyLevel)
	assert.Equal(t, 3, u.CurrentPathwayLevel)
	assert.True(t, u.AssessmentTaken, "lesson recalculation keeps the assessment flag")
}

func TestPathwayService_Pathway(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.DefaultEngineConfig())
	user := env.createUser(t, "map@example.com")

	step := runLessonQuiz(t, env, user.ID, "L01", func(*QuestionView) bool { return true })
	require.True(t, step.Result.Passed)

	items, err := env.pathway.Pathway(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 10)
	got := pathwayByID(items)

	assert.Equal(t, LessonCompleted, got["L01"].Status)
	assert.Equal(t, LessonAvailable, got["L02"].Status)
	assert.Equal(t, LessonLocked, got["L03"].Status)
	assert.Equal(t, "Complete all Level 1 lessons first", got["L03"].LockReason)
}
