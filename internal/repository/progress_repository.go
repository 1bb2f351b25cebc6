package repository

import (
	"context"
	"credahead_backend/internal/model"
	"errors"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// FindByUserAndLesson 不存在时返回 (nil, nil)
func (r *ProgressRepository) FindByUserAndLesson(ctx context.Context, userID uint, lessonID string) (*model.UserProgress, error) {
	var p model.UserProgress
	err := r.DB.WithContext(ctx).Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProgressRepository) Save(ctx context.Context, p *model.UserProgress) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *ProgressRepository) ListByUser(ctx context.Context, userID uint) ([]model.UserProgress, error) {
	var ps []model.UserProgress
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&ps).Error
	return ps, err
}
