package repository

import (
	"context"
	"credahead_backend/internal/model"
	"database/sql"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// QuestionFilter 出题查询条件；零值字段表示不限制
type QuestionFilter struct {
	MinDifficulty int
	MaxDifficulty int
	LevelRange    *model.LevelRange
	LessonID      string
	ExcludeIDs    []string
	Limit         int
}

// FindCandidates 只返回挂在课程下的题目（inner join lessons）
func (r *QuestionRepository) FindCandidates(ctx context.Context, f QuestionFilter) ([]model.Question, error) {
	query := r.DB.WithContext(ctx).
		Model(&model.Question{}).
		Select("questions.*").
		Joins("JOIN lessons ON lessons.lesson_id = questions.lesson_id AND lessons.deleted_at IS NULL")

	if f.MinDifficulty > 0 {
		query = query.Where("questions.difficulty >= ?", f.MinDifficulty)
	}
	if f.MaxDifficulty > 0 {
		query = query.Where("questions.difficulty <= ?", f.MaxDifficulty)
	}
	if f.LevelRange != nil {
		query = query.Where("lessons.level BETWEEN ? AND ?", f.LevelRange.Min, f.LevelRange.Max)
	}
	if f.LessonID != "" {
		query = query.Where("questions.lesson_id = ?", f.LessonID)
	}
	if len(f.ExcludeIDs) > 0 {
		query = query.Where("questions.question_id NOT IN ?", f.ExcludeIDs)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var qs []model.Question
	err := query.Find(&qs).Error
	return qs, err
}

func (r *QuestionRepository) FindByQuestionID(ctx context.Context, questionID string) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).Where("question_id = ?", questionID).First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// MaxDifficultyForLesson 课程题库中最高难度；无题目时返回 0
func (r *QuestionRepository) MaxDifficultyForLesson(ctx context.Context, lessonID string) (int, error) {
	var max sql.NullInt64
	row := r.DB.WithContext(ctx).
		Model(&model.Question{}).
		Where("lesson_id = ?", lessonID).
		Select("MAX(difficulty)").
		Row()
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}

// QuestionModuleLink 题目 -> 课程 -> 模块 的关联
type QuestionModuleLink struct {
	QuestionID string
	LessonID   string
	ModuleID   string
	ModuleName string
}

func (r *QuestionRepository) FindModuleLinks(ctx context.Context, questionIDs []string) ([]QuestionModuleLink, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var links []QuestionModuleLink
	err := r.DB.WithContext(ctx).
		Table("questions").
		Select("questions.question_id AS question_id, lessons.lesson_id AS lesson_id, modules.module_id AS module_id, modules.name AS module_name").
		Joins("JOIN lessons ON lessons.lesson_id = questions.lesson_id").
		Joins("JOIN modules ON modules.module_id = lessons.module_id").
		Where("questions.question_id IN ?", questionIDs).
		Where("questions.deleted_at IS NULL").
		Scan(&links).Error
	return links, err
}
