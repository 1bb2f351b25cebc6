package service

import (
	"context"
	"credahead_backend/internal/config"
	"credahead_backend/internal/model"
	"credahead_backend/internal/repository"
	"credahead_backend/internal/util"
	"credahead_backend/pkg/logger"
	"credahead_backend/pkg/monitoring"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const inactiveSweepBatch = 100

// QuestionView 下发给客户端的题目，不包含正确答案
type QuestionView struct {
	QuestionID string   `json:"questionId"`
	LessonID   string   `json:"lessonId,omitempty"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Difficulty int      `json:"difficulty"`
}

func NewQuestionView(q *model.Question) *QuestionView {
	if q == nil {
		return nil
	}
	return &QuestionView{
		QuestionID: q.QuestionID,
		LessonID:   q.LessonID,
		Text:       q.Text,
		Options:    append([]string(nil), q.Options...),
		Difficulty: q.Difficulty,
	}
}

// SessionState 当前会话进度；Question 为待作答题目，会话结束后为空
type SessionState struct {
	SessionID         string              `json:"sessionId"`
	SessionType       model.SessionType   `json:"sessionType"`
	Status            model.SessionStatus `json:"status"`
	CurrentDifficulty float64             `json:"currentDifficulty"`
	QuestionsAnswered int                 `json:"questionsAnswered"`
	CorrectAnswers    int                 `json:"correctAnswers"`
	TotalQuestions    int                 `json:"totalQuestions"`
	Question          *QuestionView       `json:"question,omitempty"`
}

// AnswerFeedback is returned right after an answer is recorded.
type AnswerFeedback struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer int    `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}

// SessionService 会话生命周期：开始、作答、放弃、超时清理
type SessionService struct {
	DB        *gorm.DB
	Sessions  *repository.SessionRepository
	History   *repository.HistoryRepository
	Questions *repository.QuestionRepository
	Cache     *HistoryCache
	Selector  *QuestionSelector
	Engine    config.EngineConfig

	now func() time.Time
}

func NewSessionService(
	db *gorm.DB,
	sessions *repository.SessionRepository,
	history *repository.HistoryRepository,
	questions *repository.QuestionRepository,
	cache *HistoryCache,
	selector *QuestionSelector,
	engine config.EngineConfig,
) *SessionService {
	return &SessionService{
		DB:        db,
		Sessions:  sessions,
		History:   history,
		Questions: questions,
		Cache:     cache,
		Selector:  selector,
		Engine:    engine,
		now:       time.Now,
	}
}

func (s *SessionService) stateOf(session *model.QuizSession, total int, q *model.Question) SessionState {
	return SessionState{
		SessionID:         session.ID,
		SessionType:       session.SessionType,
		Status:            session.Status,
		CurrentDifficulty: session.CurrentDifficulty,
		QuestionsAnswered: session.QuestionsAnswered,
		CorrectAnswers:    session.CorrectAnswers,
		TotalQuestions:    total,
		Question:          NewQuestionView(q),
	}
}

// begin abandons any active session for the same user and context, then
// creates a fresh one. Both happen in one transaction.
func (s *SessionService) begin(ctx context.Context, userID uint, sessionType model.SessionType, lessonID *string) (*model.QuizSession, error) {
	now := s.now()
	session := &model.QuizSession{
		UserID:            userID,
		LessonID:          lessonID,
		SessionType:       sessionType,
		CurrentDifficulty: s.Engine.InitialDifficulty,
		Status:            model.SessionActive,
		StartedAt:         now,
		LastActivityAt:    now,
	}

	var abandoned []model.QuizSession
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.Sessions.WithTx(tx)
		active, err := repo.FindActive(ctx, userID, sessionType, lessonID)
		if err != nil {
			return err
		}
		for _, prev := range active {
			ok, err := repo.Finalize(ctx, prev.ID, model.SessionAbandoned, now)
			if err != nil {
				return err
			}
			if ok {
				abandoned = append(abandoned, prev)
			}
		}
		return repo.Create(ctx, session)
	})
	if err != nil {
		return nil, fmt.Errorf("start %s session: %w", sessionType, err)
	}

	for i := range abandoned {
		s.Cache.InvalidateContext(ctx, userID, abandoned[i].Context())
		monitoring.SessionTransitions.WithLabelValues(string(sessionType), string(model.SessionAbandoned)).Inc()
		logger.Log.Info("previous session abandoned",
			zap.String("sessionId", abandoned[i].ID),
			zap.Uint("userId", userID))
	}
	monitoring.SessionTransitions.WithLabelValues(string(sessionType), string(model.SessionActive)).Inc()
	return session, nil
}

// loadOwned 校验会话归属
func (s *SessionService) loadOwned(ctx context.Context, userID uint, sessionID string) (*model.QuizSession, error) {
	session, err := s.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return session, nil
}

// sessionResponses 会话内已作答记录
func (s *SessionService) sessionResponses(ctx context.Context, sessionID string) ([]Response, map[string]struct{}, error) {
	rows, err := s.History.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	responses := make([]Response, 0, len(rows))
	used := make(map[string]struct{}, len(rows))
	for _, h := range rows {
		responses = append(responses, Response{
			QuestionID: h.QuestionID,
			IsCorrect:  h.AnsweredCorrectly,
			Difficulty: h.DifficultyAtTime,
		})
		used[h.QuestionID] = struct{}{}
	}
	return responses, used, nil
}

func (s *SessionService) selectFor(ctx context.Context, session *model.QuizSession, used map[string]struct{}) *model.Question {
	opts := SelectionOptions{
		UserID:            session.UserID,
		Context:           session.Context(),
		CurrentDifficulty: session.CurrentDifficulty,
		UsedQuestionIDs:   used,
	}
	if session.LessonID != nil {
		opts.LessonID = *session.LessonID
	}
	return s.Selector.SelectNextQuestion(ctx, opts)
}

// serve 记录下一题；返回 nil 表示题库已耗尽
func (s *SessionService) serve(ctx context.Context, session *model.QuizSession, used map[string]struct{}) (*model.Question, error) {
	q := s.selectFor(ctx, session, used)
	var current *string
	if q != nil {
		id := q.QuestionID
		current = &id
	}
	session.CurrentQuestionID = current
	ok, err := s.Sessions.UpdateProgress(ctx, session.ID, repository.SessionProgress{
		CurrentDifficulty: session.CurrentDifficulty,
		QuestionsAnswered: session.QuestionsAnswered,
		CorrectAnswers:    session.CorrectAnswers,
		CurrentQuestionID: current,
		LastActivityAt:    session.LastActivityAt,
	})
	if err != nil {
		return nil, fmt.Errorf("update session %s: %w", session.ID, err)
	}
	if !ok {
		return nil, util.ErrSessionNotActive
	}
	return q, nil
}

// answered is the outcome of recording one answer.
type answered struct {
	session   *model.QuizSession
	question  *model.Question
	feedback  AnswerFeedback
	responses []Response
	used      map[string]struct{}
}

// record validates and stores one answer, then moves the running difficulty.
// The session row itself is written by the caller.
func (s *SessionService) record(ctx context.Context, userID uint, sessionID string, sessionType model.SessionType, questionID string, selected int) (*answered, error) {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.SessionType != sessionType {
		return nil, util.ErrSessionNotFound
	}
	if !session.IsActive() {
		return nil, util.ErrSessionNotActive
	}
	if session.CurrentQuestionID == nil || *session.CurrentQuestionID != questionID {
		return nil, util.ErrQuestionMismatch
	}

	q, err := s.Questions.FindByQuestionID(ctx, questionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	if selected < 0 || selected >= len(q.Options) {
		return nil, util.ErrInvalidOption
	}

	now := s.now()
	correct := selected == q.CorrectAnswer
	contextKey := session.Context()
	if err := s.History.Insert(ctx, &model.UserQuestionHistory{
		UserID:            userID,
		QuestionID:        q.QuestionID,
		Context:           contextKey,
		SessionID:         session.ID,
		AnsweredCorrectly: correct,
		DifficultyAtTime:  q.Difficulty,
		AnsweredAt:        now,
	}); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}
	s.Cache.AddToHistory(ctx, userID, contextKey, q.QuestionID)

	session.CurrentDifficulty = AdjustDifficulty(session.CurrentDifficulty, correct)
	session.QuestionsAnswered++
	if correct {
		session.CorrectAnswers++
	}
	session.LastActivityAt = now

	responses, used, err := s.sessionResponses(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load session answers: %w", err)
	}

	return &answered{
		session:  session,
		question: q,
		feedback: AnswerFeedback{
			Correct:       correct,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		},
		responses: responses,
		used:      used,
	}, nil
}

// finish writes the final counters and marks the session completed. It
// reports ErrSessionNotActive when another request already ended it.
func (s *SessionService) finish(ctx context.Context, session *model.QuizSession) error {
	session.CurrentQuestionID = nil
	if _, err := s.Sessions.UpdateProgress(ctx, session.ID, repository.SessionProgress{
		CurrentDifficulty: session.CurrentDifficulty,
		QuestionsAnswered: session.QuestionsAnswered,
		CorrectAnswers:    session.CorrectAnswers,
		LastActivityAt:    session.LastActivityAt,
	}); err != nil {
		return fmt.Errorf("update session %s: %w", session.ID, err)
	}

	at := s.now()
	ok, err := s.Sessions.Finalize(ctx, session.ID, model.SessionCompleted, at)
	if err != nil {
		return fmt.Errorf("complete session %s: %w", session.ID, err)
	}
	if !ok {
		return util.ErrSessionNotActive
	}
	session.Status = model.SessionCompleted
	session.CompletedAt = &at
	monitoring.SessionTransitions.WithLabelValues(string(session.SessionType), string(model.SessionCompleted)).Inc()
	return nil
}

// Abandon 用户主动放弃会话
func (s *SessionService) Abandon(ctx context.Context, userID uint, sessionID string) error {
	session, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	ok, err := s.Sessions.Finalize(ctx, session.ID, model.SessionAbandoned, s.now())
	if err != nil {
		return fmt.Errorf("abandon session %s: %w", session.ID, err)
	}
	if !ok {
		return util.ErrSessionNotActive
	}
	s.Cache.InvalidateContext(ctx, userID, session.Context())
	monitoring.SessionTransitions.WithLabelValues(string(session.SessionType), string(model.SessionAbandoned)).Inc()
	return nil
}

// AbandonInactive 放弃超过 InactivityTimeout 没有作答的会话，返回处理数量
func (s *SessionService) AbandonInactive(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.Engine.InactivityTimeout)
	count := 0
	for {
		stale, err := s.Sessions.ListInactive(ctx, cutoff, inactiveSweepBatch)
		if err != nil {
			return count, fmt.Errorf("list inactive sessions: %w", err)
		}
		for i := range stale {
			ok, err := s.Sessions.Finalize(ctx, stale[i].ID, model.SessionAbandoned, now)
			if err != nil {
				return count, fmt.Errorf("abandon session %s: %w", stale[i].ID, err)
			}
			if !ok {
				continue
			}
			count++
			s.Cache.InvalidateContext(ctx, stale[i].UserID, stale[i].Context())
			monitoring.SessionTransitions.WithLabelValues(string(stale[i].SessionType), string(model.SessionAbandoned)).Inc()
		}
		if len(stale) < inactiveSweepBatch {
			return count, nil
		}
	}
}
