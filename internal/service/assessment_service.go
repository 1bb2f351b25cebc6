package service

import (
	"context"
	"credahead_backend/internal/model"
	"credahead_backend/internal/repository"
	"credahead_backend/internal/util"
	"credahead_backend/pkg/logger"
	"credahead_backend/pkg/tracing"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// AssessmentResult 初始测评结果
type AssessmentResult struct {
	SessionID       string              `json:"sessionId"`
	LiteracyLevel   int                 `json:"literacyLevel"`
	CorrectAnswers  int                 `json:"correctAnswers"`
	TotalQuestions  int                 `json:"totalQuestions"`
	AccuracyPct     int                 `json:"accuracyPct"`
	DurationSeconds int64               `json:"durationSeconds"`
	Percentile      int                 `json:"percentile"`
	Modules         []ModulePerformance `json:"modules"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
}

// AssessmentStep 开始测评或作答后的返回
type AssessmentStep struct {
	Feedback *AnswerFeedback   `json:"feedback,omitempty"`
	Session  SessionState      `json:"session"`
	Result   *AssessmentResult `json:"result,omitempty"`
}

type AssessmentService struct {
	*SessionService
	Users       *repository.UserRepository
	Scores      *repository.ScoreRepository
	Modules     *ModulePerformanceService
	Percentiles *PercentileService
}

func NewAssessmentService(
	sessions *SessionService,
	users *repository.UserRepository,
	scores *repository.ScoreRepository,
	modules *ModulePerformanceService,
	percentiles *PercentileService,
) *AssessmentService {
	return &AssessmentService{
		SessionService: sessions,
		Users:          users,
		Scores:         scores,
		Modules:        modules,
		Percentiles:    percentiles,
	}
}

// Start 开始新的测评，之前未完成的测评会被放弃
func (s *AssessmentService) Start(ctx context.Context, userID uint) (*AssessmentStep, error) {
	ctx, span := tracing.Tracer().Start(ctx, "AssessmentService.Start")
	defer span.End()

	session, err := s.begin(ctx, userID, model.SessionAssessment, nil)
	if err != nil {
		return nil, err
	}
	q, err := s.serve(ctx, session, nil)
	if err != nil {
		return nil, err
	}
	if q == nil {
		result, err := s.complete(ctx, session, nil)
		if err != nil {
			return nil, err
		}
		return &AssessmentStep{Session: s.stateOf(session, s.Engine.AssessmentLength, nil), Result: result}, nil
	}
	return &AssessmentStep{Session: s.stateOf(session, s.Engine.AssessmentLength, q)}, nil
}

// Answer 记录一次作答；达到题量或题库耗尽时自动完成测评
func (s *AssessmentService) Answer(ctx context.Context, userID uint, sessionID, questionID string, selected int) (*AssessmentStep, error) {
	ctx, span := tracing.Tracer().Start(ctx, "AssessmentService.Answer")
	defer span.End()

	a, err := s.record(ctx, userID, sessionID, model.SessionAssessment, questionID, selected)
	if err != nil {
		return nil, err
	}
	step := &AssessmentStep{Feedback: &a.feedback}

	if a.session.QuestionsAnswered < s.Engine.AssessmentLength {
		next, err := s.serve(ctx, a.session, a.used)
		if err != nil {
			return nil, err
		}
		if next != nil {
			step.Session = s.stateOf(a.session, s.Engine.AssessmentLength, next)
			return step, nil
		}
	}

	result, err := s.complete(ctx, a.session, a.responses)
	if err != nil {
		return nil, err
	}
	step.Session = s.stateOf(a.session, s.Engine.AssessmentLength, nil)
	step.Result = result
	return step, nil
}

// complete 完成测评：计算等级、写入分数与用户等级
func (s *AssessmentService) complete(ctx context.Context, session *model.QuizSession, responses []Response) (*AssessmentResult, error) {
	if err := s.finish(ctx, session); err != nil {
		return nil, err
	}

	level := CalculateLiteracyLevel(responses)
	userID := session.UserID
	if err := s.Scores.Create(ctx, &model.Score{Score: level, UserID: &userID}); err != nil {
		logger.Log.Error("failed to store assessment score",
			zap.String("sessionId", session.ID),
			zap.Error(err))
	}
	pathway := util.ClampInt(level+1, util.MinDifficulty, util.MaxDifficulty)
	if err := s.Users.UpdateLiteracy(ctx, userID, level, pathway, true); err != nil {
		logger.Log.Error("failed to update user literacy level",
			zap.Uint("userId", userID),
			zap.Error(err))
	}

	logger.Log.Info("assessment completed",
		zap.String("sessionId", session.ID),
		zap.Uint("userId", userID),
		zap.Int("level", level),
		zap.Int("answered", session.QuestionsAnswered))

	return s.buildResult(ctx, session, responses, level), nil
}

func (s *AssessmentService) buildResult(ctx context.Context, session *model.QuizSession, responses []Response, level int) *AssessmentResult {
	result := &AssessmentResult{
		SessionID:      session.ID,
		LiteracyLevel:  level,
		CorrectAnswers: countCorrect(responses),
		TotalQuestions: len(responses),
		Modules:        s.Modules.CalculateModulePerformance(ctx, responses),
		Percentile:     s.Percentiles.CalculatePercentile(ctx, level),
		CompletedAt:    session.CompletedAt,
	}
	if result.TotalQuestions > 0 {
		result.AccuracyPct = int(math.Round(float64(result.CorrectAnswers) / float64(result.TotalQuestions) * 100))
	}
	if session.CompletedAt != nil {
		result.DurationSeconds = int64(session.CompletedAt.Sub(session.StartedAt).Seconds())
	}
	return result
}

// Result 重新计算已完成测评的结果，不写库
func (s *AssessmentService) Result(ctx context.Context, userID uint, sessionID string) (*AssessmentResult, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.SessionType != model.SessionAssessment {
		return nil, util.ErrSessionNotFound
	}
	if session.Status != model.SessionCompleted {
		return nil, util.ErrSessionNotCompleted
	}
	responses, _, err := s.sessionResponses(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load session answers: %w", err)
	}
	return s.buildResult(ctx, session, responses, CalculateLiteracyLevel(responses)), nil
}
