package service

import (
	"context"
	"credahead_backend/internal/config"
	"credahead_backend/internal/model"
	"credahead_backend/internal/repository"
	"credahead_backend/internal/util"
	"credahead_backend/pkg/logger"
	"credahead_backend/pkg/tracing"
	"fmt"

	"go.uber.org/zap"
)

// NewLessonPassPolicy 根据配置选择课程小测通过规则
func NewLessonPassPolicy(engine config.EngineConfig) LessonPassPolicy {
	if engine.LessonPassPolicy == config.PassPolicyPercentage {
		return PercentagePassPolicy{MinScore: engine.LessonPassMinScore}
	}
	return MaxDifficultyPassPolicy{}
}

type LessonQuizResult struct {
	SessionID      string `json:"sessionId"`
	LessonID       string `json:"lessonId"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalQuestions int    `json:"totalQuestions"`
	Passed         bool   `json:"passed"`
	PassPolicy     string `json:"passPolicy"`
	LiteracyLevel  int    `json:"literacyLevel,omitempty"`
}

type LessonQuizStep struct {
	Feedback *AnswerFeedback   `json:"feedback,omitempty"`
	Session  SessionState      `json:"session"`
	Result   *LessonQuizResult `json:"result,omitempty"`
}

type LessonQuizService struct {
	*SessionService
	Curriculum *repository.CurriculumRepository
	Progress   *repository.ProgressRepository
	Pathway    *PathwayService
	Policy     LessonPassPolicy
}

func NewLessonQuizService(
	sessions *SessionService,
	curriculum *repository.CurriculumRepository,
	progress *repository.ProgressRepository,
	pathway *PathwayService,
	policy LessonPassPolicy,
) *LessonQuizService {
	return &LessonQuizService{
		SessionService: sessions,
		Curriculum:     curriculum,
		Progress:       progress,
		Pathway:        pathway,
		Policy:         policy,
	}
}

func (s *LessonQuizService) Start(ctx context.Context, userID uint, lessonID string) (*LessonQuizStep, error) {
	ctx, span := tracing.Tracer().Start(ctx, "LessonQuizService.Start")
	defer span.End()

	if _, err := s.Curriculum.FindLesson(ctx, lessonID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}

	id := lessonID
	session, err := s.begin(ctx, userID, model.SessionLesson, &id)
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
		return &LessonQuizStep{Session: s.stateOf(session, s.Engine.LessonQuizLength, nil), Result: result}, nil
	}
	return &LessonQuizStep{Session: s.stateOf(session, s.Engine.LessonQuizLength, q)}, nil
}

func (s *LessonQuizService) Answer(ctx context.Context, userID uint, lessonID, sessionID, questionID string, selected int) (*LessonQuizStep, error) {
	ctx, span := tracing.Tracer().Start(ctx, "LessonQuizService.Answer")
	defer span.End()

	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.LessonID == nil || *session.LessonID != lessonID {
		return nil, util.ErrSessionNotFound
	}

	a, err := s.record(ctx, userID, sessionID, model.SessionLesson, questionID, selected)
	if err != nil {
		return nil, err
	}
	step := &LessonQuizStep{Feedback: &a.feedback}

	if a.session.QuestionsAnswered < s.Engine.LessonQuizLength {
		next, err := s.serve(ctx, a.session, a.used)
		if err != nil {
			return nil, err
		}
		if next != nil {
			step.Session = s.stateOf(a.session, s.Engine.LessonQuizLength, next)
			return step, nil
		}
	}

	result, err := s.complete(ctx, a.session, a.responses)
	if err != nil {
		return nil, err
	}
	step.Session = s.stateOf(a.session, s.Engine.LessonQuizLength, nil)
	step.Result = result
	return step, nil
}

func (s *LessonQuizService) complete(ctx context.Context, session *model.QuizSession, responses []Response) (*LessonQuizResult, error) {
	if err := s.finish(ctx, session); err != nil {
		return nil, err
	}
	lessonID := session.Context()

	maxDifficulty, err := s.Questions.MaxDifficultyForLesson(ctx, lessonID)
	if err != nil {
		logger.Log.Error("failed to read lesson max difficulty", zap.String("lessonId", lessonID), zap.Error(err))
	}

	result := &LessonQuizResult{
		SessionID:      session.ID,
		LessonID:       lessonID,
		Score:          CalculateQuizScore(responses),
		CorrectAnswers: countCorrect(responses),
		TotalQuestions: len(responses),
		Passed:         s.Policy.Passed(responses, maxDifficulty),
		PassPolicy:     s.Policy.Name(),
	}

	// 题库已全部做过时没有出题，不计入尝试次数
	if len(responses) == 0 {
		logger.Log.Info("lesson quiz ended without questions",
			zap.String("sessionId", session.ID),
			zap.String("lessonId", lessonID))
		return result, nil
	}

	if err := s.saveProgress(ctx, session.UserID, lessonID, result); err != nil {
		logger.Log.Error("failed to save lesson progress",
			zap.Uint("userId", session.UserID),
			zap.String("lessonId", lessonID),
			zap.Error(err))
		return result, nil
	}

	if result.Passed {
		level, err := s.Pathway.RecalculateLiteracyLevel(ctx, session.UserID)
		if err != nil {
			logger.Log.Error("failed to recalculate literacy level", zap.Uint("userId", session.UserID), zap.Error(err))
		}
		result.LiteracyLevel = level
	}

	logger.Log.Info("lesson quiz completed",
		zap.String("sessionId", session.ID),
		zap.String("lessonId", lessonID),
		zap.Int("score", result.Score),
		zap.Bool("passed", result.Passed))
	return result, nil
}

// saveProgress upserts user_progress. Completion is sticky and the best score
// is kept.
func (s *LessonQuizService) saveProgress(ctx context.Context, userID uint, lessonID string, result *LessonQuizResult) error {
	for attempt := 0; attempt < 2; attempt++ {
		p, err := s.Progress.FindByUserAndLesson(ctx, userID, lessonID)
		if err != nil {
			return err
		}
		if p == nil {
			p = &model.UserProgress{UserID: userID, LessonID: lessonID}
		}
		p.Attempts++
		if result.Score > p.Score {
			p.Score = result.Score
		}
		if result.Passed && !p.Completed {
			now := s.now()
			p.Completed = true
			p.CompletedAt = &now
		}
		err = s.Progress.Save(ctx, p)
		if err == nil {
			return nil
		}
		// 并发首次写入时唯一索引冲突，重读后再试一次
		if !repository.IsUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("save progress for lesson %s: concurrent update", lessonID)
}
