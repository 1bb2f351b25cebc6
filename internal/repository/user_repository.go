package repository

import (
	"context"
	"credahead_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("last_login", at).Error
}

// UpdateLiteracy 写入 literacy_level 与 current_pathway_level；assessmentTaken 为 true 时一并标记
func (r *UserRepository) UpdateLiteracy(ctx context.Context, id uint, literacyLevel, pathwayLevel int, assessmentTaken bool) error {
	updates := map[string]interface{}{
		"literacy_level":        literacyLevel,
		"current_pathway_level": pathwayLevel,
	}
	if assessmentTaken {
		updates["assessment_taken"] = true
	}
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
}
