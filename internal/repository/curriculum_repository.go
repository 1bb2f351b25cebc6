package repository

import (
	"context"
	"credahead_backend/internal/model"

	"gorm.io/gorm"
)

type CurriculumRepository struct {
	DB *gorm.DB
}

func NewCurriculumRepository(db *gorm.DB) *CurriculumRepository {
	return &CurriculumRepository{DB: db}
}

func (r *CurriculumRepository) ListModules(ctx context.Context) ([]model.Module, error) {
	var modules []model.Module
	err := r.DB.WithContext(ctx).Order("module_id asc").Find(&modules).Error
	return modules, err
}

func (r *CurriculumRepository) FindLesson(ctx context.Context, lessonID string) (*model.Lesson, error) {
	var l model.Lesson
	if err := r.DB.WithContext(ctx).Where("lesson_id = ?", lessonID).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLessons 按 level、lesson_id 升序
func (r *CurriculumRepository) ListLessons(ctx context.Context) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.WithContext(ctx).Order("level asc").Order("lesson_id asc").Find(&lessons).Error
	return lessons, err
}

func (r *CurriculumRepository) ListLessonsByIDs(ctx context.Context, lessonIDs []string) ([]model.Lesson, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	var lessons []model.Lesson
	err := r.DB.WithContext(ctx).Where("lesson_id IN ?", lessonIDs).Find(&lessons).Error
	return lessons, err
}
