package repository

import (
	"context"
	"credahead_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: tx}
}

func (r *SessionRepository) Create(ctx context.Context, s *model.QuizSession) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*model.QuizSession, error) {
	var s model.QuizSession
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// FindActive 某用户在某 context 下仍处于 active 的会话
func (r *SessionRepository) FindActive(ctx context.Context, userID uint, sessionType model.SessionType, lessonID *string) ([]model.QuizSession, error) {
	query := r.DB.WithContext(ctx).
		Where("user_id = ? AND session_type = ? AND status = ?", userID, sessionType, model.SessionActive)
	if lessonID != nil {
		query = query.Where("lesson_id = ?", *lessonID)
	}
	var sessions []model.QuizSession
	err := query.Order("started_at desc").Find(&sessions).Error
	return sessions, err
}

// SessionProgress 每次作答后写回的字段
type SessionProgress struct {
	CurrentDifficulty float64
	QuestionsAnswered int
	CorrectAnswers    int
	CurrentQuestionID *string
	LastActivityAt    time.Time
}

// UpdateProgress 仅更新 active 会话，返回是否命中
func (r *SessionRepository) UpdateProgress(ctx context.Context, id string, p SessionProgress) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&model.QuizSession{}).
		Where("id = ? AND status = ?", id, model.SessionActive).
		Updates(map[string]interface{}{
			"current_difficulty":  p.CurrentDifficulty,
			"questions_answered":  p.QuestionsAnswered,
			"correct_answers":     p.CorrectAnswers,
			"current_question_id": p.CurrentQuestionID,
			"last_activity_at":    p.LastActivityAt,
		})
	return res.RowsAffected > 0, res.Error
}

// Finalize 将 active 会话置为 completed/abandoned；条件更新保证只会结束一次
func (r *SessionRepository) Finalize(ctx context.Context, id string, status model.SessionStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":              status,
		"current_question_id": nil,
		"last_activity_at":    at,
	}
	if status == model.SessionCompleted {
		updates["completed_at"] = at
	}
	res := r.DB.WithContext(ctx).
		Model(&model.QuizSession{}).
		Where("id = ? AND status = ?", id, model.SessionActive).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// ListInactive active 且最后活动早于 cutoff 的会话
func (r *SessionRepository) ListInactive(ctx context.Context, cutoff time.Time, limit int) ([]model.QuizSession, error) {
	var sessions []model.QuizSession
	err := r.DB.WithContext(ctx).
		Where("status = ? AND last_activity_at < ?", model.SessionActive, cutoff).
		Order("last_activity_at asc").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}
