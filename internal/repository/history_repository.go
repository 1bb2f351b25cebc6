package repository

import (
	"context"
	"credahead_backend/internal/model"

	"gorm.io/gorm"
)

// HistoryRepository user_question_history 只插入不更新
type HistoryRepository struct {
	DB *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{DB: db}
}

func (r *HistoryRepository) Insert(ctx context.Context, h *model.UserQuestionHistory) error {
	return r.DB.WithContext(ctx).Create(h).Error
}

func (r *HistoryRepository) ListQuestionIDs(ctx context.Context, userID uint, contextKey string) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).
		Model(&model.UserQuestionHistory{}).
		Where("user_id = ? AND context = ?", userID, contextKey).
		Distinct().
		Pluck("question_id", &ids).Error
	return ids, err
}

// ListBySession 会话内作答记录，按作答顺序
func (r *HistoryRepository) ListBySession(ctx context.Context, sessionID string) ([]model.UserQuestionHistory, error) {
	var rows []model.UserQuestionHistory
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("answered_at asc").Order("id asc").
		Find(&rows).Error
	return rows, err
}

type QuestionAttemptStats struct {
	TotalAttempts  int64
	CorrectAnswers int64
}

func (r *HistoryRepository) QuestionStats(ctx context.Context, questionID string) (QuestionAttemptStats, error) {
	var stats QuestionAttemptStats
	err := r.DB.WithContext(ctx).
		Model(&model.UserQuestionHistory{}).
		Select("COUNT(*) AS total_attempts, COALESCE(SUM(CASE WHEN answered_correctly THEN 1 ELSE 0 END), 0) AS correct_answers").
		Where("question_id = ?", questionID).
		Scan(&stats).Error
	return stats, err
}
