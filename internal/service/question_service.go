package service

import (
	"context"
	"credahead_backend/internal/repository"
	"credahead_backend/internal/util"
	"math"
)

type QuestionStats struct {
	QuestionID     string `json:"questionId"`
	Difficulty     int    `json:"difficulty"`
	TotalAttempts  int64  `json:"totalAttempts"`
	CorrectAnswers int64  `json:"correctAnswers"`
	CorrectRate    int    `json:"correctRate"`
}

type QuestionService struct {
	Questions *repository.QuestionRepository
	History   *repository.HistoryRepository
}

func NewQuestionService(questions *repository.QuestionRepository, history *repository.HistoryRepository) *QuestionService {
	return &QuestionService{Questions: questions, History: history}
}

// Stats 题目作答统计，CorrectRate 为百分比
func (s *QuestionService) Stats(ctx context.Context, questionID string) (*QuestionStats, error) {
	q, err := s.Questions.FindByQuestionID(ctx, questionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	raw, err := s.History.QuestionStats(ctx, questionID)
	if err != nil {
		return nil, err
	}
	stats := &QuestionStats{
		QuestionID:     q.QuestionID,
		Difficulty:     q.Difficulty,
		TotalAttempts:  raw.TotalAttempts,
		CorrectAnswers: raw.CorrectAnswers,
	}
	if raw.TotalAttempts > 0 {
		stats.CorrectRate = int(math.Round(float64(raw.CorrectAnswers) / float64(raw.TotalAttempts) * 100))
	}
	return stats, nil
}
