package service

import (
	"context"
	"testing"

	"credahead_backend/internal/config"
	"credahead_backend/internal/model"
	"credahead_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessment_EndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.DefaultEngineConfig())
	user := env.createUser(t, "e2e@example.com")

	step, err := env.assessment.Start(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, step.Session.Question)
	assert.Equal(t, 5.0, step.Session.CurrentDifficulty)
	assert.Equal(t, 24, step.Session.TotalQuestions)
	sessionID := step.Session.SessionID

	const target = 18
	correct, answered := 0, 0
	served := map[string]bool{}
	for step.Result == nil {
		question := step.Session.Question
		require.NotNil(t, question)
		require.False(t, served[question.QuestionID], "question served twice")
		served[question.QuestionID] = true

		need, remaining := target-correct, 24-answered
		answerCorrectly := need >= remaining || (need > 0 && question.Difficulty <= 7)

		prevDifficulty := step.Session.CurrentDifficulty
		step, err = env.assessment.Answer(ctx, user.ID, sessionID, question.QuestionID, env.answerFor(t, question.QuestionID, answerCorrectly))
		require.NoError(t, err)
		require.NotNil(t, step.Feedback)
		assert.Equal(t, answerCorrectly, step.Feedback.Correct)
		assert.InDelta(t, AdjustDifficulty(prevDifficulty, answerCorrectly), step.Session.CurrentDifficulty, 1e-9)

		answered++
		if answerCorrectly {
			correct++
		}
		require.LessOrEqual(t, answered, 24)
	}

	result := step.Result
	assert.Equal(t, 24, result.TotalQuestions)
	assert.Equal(t, target, result.CorrectAnswers)
	assert.Equal(t, 75, result.AccuracyPct)
	assert.Equal(t, model.SessionCompleted, step.Session.Status)
	assert.Nil(t, step.Session.Question)

	rows, err := env.history.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, rows, 24)
	responses := make([]Response, len(rows))
	for i, h := range rows {
		assert.Equal(t, model.AssessmentContext, h.Context)
		responses[i] = Response{QuestionID: h.QuestionID, IsCorrect: h.AnsweredCorrectly, Difficulty: h.DifficultyAtTime}
	}
	assert.Equal(t, CalculateLiteracyLevel(responses), result.LiteracyLevel)

	moduleTotal, moduleCorrect := 0, 0
	for _, m := range result.Modules {
		moduleTotal += m.Total
		moduleCorrect += m.Correct
	}
	assert.Equal(t, 24, moduleTotal)
	assert.Equal(t, target, moduleCorrect)

	population, err := env.scores.AllScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, PercentileRank(population, result.LiteracyLevel), result.Percentile)

	var stored model.Score
	require.NoError(t, env.db.Where("user_id = ?", user.ID).First(&stored).Error)
	assert.Equal(t, result.LiteracyLevel, stored.Score)
	assert.False(t, stored.IsDummy)

	updated, err := env.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.AssessmentTaken)
	assert.Equal(t, result.LiteracyLevel, updated.LiteracyLevel)
	assert.Equal(t, util.ClampInt(result.LiteracyLevel+1, 1, 10), updated.CurrentPathwayLevel)

	session, err := env.sessions.FindByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, session.Status)
	assert.Equal(t, 24, session.QuestionsAnswered)
	assert.Equal(t, target, session.CorrectAnswers)
	require.NotNil(t, session.CompletedAt)
	assert.Nil(t, session.CurrentQuestionID)

	again, err := env.assessment.Result(ctx, user.ID, sessionID)
	require.NoError(t, err)
	assert.Equal(t, result.LiteracyLevel, again.LiteracyLevel)
	assert.Equal(t, result.Percentile, again.Percentile)

	_, err = env.assessment.Answer(ctx, user.ID, sessionID, rows[0].QuestionID, 0)
	assert.ErrorIs(t, err, util.ErrSessionNotActive)
}

func TestAssessment_StartAbandonsPreviousSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.DefaultEngineConfig())
	user := env.createUser(t, "restart@example.com")

	first, err := env.assessment.Start(ctx, user.ID)
	require.NoError(t, err)
	second, err := env.assessment.Start(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Session.SessionID, second.Session.SessionID)

	prev, err := env.sessions.FindByID(ctx, first.Session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionAbandoned, prev.Status)

	active, err := env.sessions.FindActive(ctx, user.ID, model.SessionAssessment, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.Session.SessionID, active[0].ID)

	_, err = env.assessment.Answer(ctx, user.ID, first.Session.SessionID, first.Session.Question.QuestionID, 0)
	assert.ErrorIs(t, err, util.ErrSessionNotActive)
}

func TestAssessment_AnswerValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, config.DefaultEngineConfig())
	user := env.createUser(t, "owner@example.com")
	other := env.createUser(t, "other@example.com")

	step, err := env.assessment.Start(ctx, user.ID)
	require.NoError(t, err)
	sessionID := step.Session.SessionID
	current := step.Session.Question.QuestionID

	_, err = env.assessment.Answer(ctx, other.ID, sessionID, current, 0)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = env.assessment.Answer(ctx, user.ID, "missing-session", current, 0)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)

	wrong := "L01-Q01"
	if current == wrong {
		wrong = "L01-Q02"
	}
	_, err = env.assessment.Answer(ctx, user.ID, sessionID, wrong, 0)
	assert.ErrorIs(t, err, util.ErrQuestionMismatch)

	_, err = env.assessment.Answer(ctx, user.ID, sessionID, current, 4)
	assert.ErrorIs(t, err, util.ErrInvalidOption)

	_, err = env.assessment.Result(ctx, user.ID, sessionID)
	assert.ErrorIs(t, err, util.ErrSessionNotCompleted)

	rows, err := env.history.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, rows, "rejected answers are not recorded")
}

func TestAssessment_ShortBankCompletesOnExhaustion(t *testing.T) {
	ctx := context.Background()
	engine := config.DefaultEngineConfig()
	env := newTestEnv(t, engine)
	// 只保留一节 5 级课程的题目
	require.NoError(t, env.db.Where("lesson_id <> ?", "L05").Delete(&model.Question{}).Error)
	user := env.createUser(t, "short@example.com")

	step, err := env.assessment.Start(ctx, user.ID)
	require.NoError(t, err)

	answered := 0
	for step.Result == nil {
		question := step.Session.Question
		require.NotNil(t, question)
		step, err = env.assessment.Answer(ctx, user.ID, step.Session.SessionID, question.QuestionID, env.answerFor(t, question.QuestionID, false))
		require.NoError(t, err)
		answered++
		require.LessOrEqual(t, answered, engine.AssessmentLength)
	}

	// 一直答错时难度降到 1-3 区间，L05 不在范围内，题库提前耗尽
	assert.Less(t, answered, engine.AssessmentLength)
	assert.Equal(t, answered, step.Result.TotalQuestions)
	assert.Equal(t, 1, step.Result.LiteracyLevel)
}

func TestAssessment_SecondRunAvoidsSeenQuestions(t *testing.T) {
	ctx := context.Background()
	engine := config.DefaultEngineConfig()
	engine.AssessmentLength = 5
	env := newTestEnv(t, engine)
	user := env.createUser(t, "repeat@example.com")

	seen := map[string]bool{}
	for run := 0; run < 2; run++ {
		step, err := env.assessment.Start(ctx, user.ID)
		require.NoError(t, err)
		for step.Result == nil {
			id := step.Session.Question.QuestionID
			assert.False(t, seen[id], "question %s repeated across assessments", id)
			seen[id] = true
			step, err = env.assessment.Answer(ctx, user.ID, step.Session.SessionID, id, env.answerFor(t, id, true))
			require.NoError(t, err)
		}
		assert.Equal(t, 5, step.Result.TotalQuestions)
	}
	assert.Len(t, seen, 10)
}
