package repository

import (
	"context"
	"credahead_backend/internal/model"

	"gorm.io/gorm"
)

type ScoreRepository struct {
	DB *gorm.DB
}

func NewScoreRepository(db *gorm.DB) *ScoreRepository {
	return &ScoreRepository{DB: db}
}

func (r *ScoreRepository) Create(ctx context.Context, s *model.Score) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

// AllScores 全量分数（真实 + 种子），升序
func (r *ScoreRepository) AllScores(ctx context.Context) ([]int, error) {
	var scores []int
	err := r.DB.WithContext(ctx).
		Model(&model.Score{}).
		Order("score asc").
		Pluck("score", &scores).Error
	return scores, err
}
