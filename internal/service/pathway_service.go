package service

import (
	"context"
	"credahead_backend/internal/model"
	"credahead_backend/internal/repository"
	"credahead_backend/internal/util"
	"credahead_backend/pkg/logger"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type LessonStatus string

const (
	LessonCompleted LessonStatus = "completed"
	LessonAvailable LessonStatus = "available"
	LessonLocked    LessonStatus = "locked"
)

// PathwayLesson 学习路径中的一节课及其状态
type PathwayLesson struct {
	LessonID      string              `json:"lessonId"`
	Title         string              `json:"title"`
	Description   string              `json:"description,omitempty"`
	Level         int                 `json:"level"`
	ModuleID      string              `json:"moduleId,omitempty"`
	Prerequisites []string            `json:"prerequisites,omitempty"`
	Status        LessonStatus        `json:"status"`
	IsLocked      bool                `json:"isLocked"`
	LockReason    string              `json:"lockReason,omitempty"`
	Progress      *model.UserProgress `json:"progress,omitempty"`
}

type PathwayService struct {
	Users      *repository.UserRepository
	Curriculum *repository.CurriculumRepository
	Progress   *repository.ProgressRepository
}

func NewPathwayService(users *repository.UserRepository, curriculum *repository.CurriculumRepository, progress *repository.ProgressRepository) *PathwayService {
	return &PathwayService{Users: users, Curriculum: curriculum, Progress: progress}
}

// BuildPathway 计算每节课的状态：本级全部完成后开放下一级，先修课未完成则锁定
func BuildPathway(lessons []model.Lesson, progress []model.UserProgress, literacyLevel int) []PathwayLesson {
	if literacyLevel < util.MinDifficulty {
		literacyLevel = util.MinDifficulty
	}

	byLesson := make(map[string]*model.UserProgress, len(progress))
	completed := make(map[string]struct{})
	for i := range progress {
		byLesson[progress[i].LessonID] = &progress[i]
		if progress[i].Completed {
			completed[progress[i].LessonID] = struct{}{}
		}
	}

	levelDone := true
	for _, l := range lessons {
		if l.Level != literacyLevel {
			continue
		}
		if _, ok := completed[l.LessonID]; !ok {
			levelDone = false
			break
		}
	}
	maxAccessible := literacyLevel
	if levelDone {
		maxAccessible++
	}

	out := make([]PathwayLesson, 0, len(lessons))
	for _, l := range lessons {
		var unmet []string
		for _, pre := range l.Prerequisites {
			if _, ok := completed[pre]; !ok {
				unmet = append(unmet, pre)
			}
		}
		levelLocked := l.Level > maxAccessible
		item := PathwayLesson{
			LessonID:      l.LessonID,
			Title:         l.Title,
			Description:   l.Description,
			Level:         l.Level,
			ModuleID:      l.ModuleID,
			Prerequisites: []string(l.Prerequisites),
			IsLocked:      levelLocked || len(unmet) > 0,
			Progress:      byLesson[l.LessonID],
		}
		switch {
		case levelLocked:
			item.LockReason = fmt.Sprintf("Complete all Level %d lessons first", literacyLevel)
		case len(unmet) > 0:
			item.LockReason = "Prerequisites required: " + strings.Join(unmet, ", ")
		}

		_, done := completed[l.LessonID]
		switch {
		case done:
			item.Status = LessonCompleted
		case item.IsLocked:
			item.Status = LessonLocked
		default:
			item.Status = LessonAvailable
		}
		out = append(out, item)
	}
	return out
}

func (s *PathwayService) Pathway(ctx context.Context, userID uint) ([]PathwayLesson, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	lessons, err := s.Curriculum.ListLessons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	progress, err := s.Progress.ListByUser(ctx, userID)
	if err != nil {
		// 进度读取失败时按无进度展示
		logger.Log.Error("failed to load user progress", zap.Uint("userId", userID), zap.Error(err))
		progress = nil
	}
	return BuildPathway(lessons, progress, user.LiteracyLevel), nil
}

// HighestCompletedLevel 已完成课程所在的最高等级；没有则返回 0
func HighestCompletedLevel(completedLessons []model.Lesson) int {
	highest := 0
	for _, l := range completedLessons {
		if l.Level > highest && l.Level <= util.MaxDifficulty {
			highest = l.Level
		}
	}
	return highest
}

// RecalculateLiteracyLevel 根据已完成课程更新用户等级；无已完成课程时不修改
func (s *PathwayService) RecalculateLiteracyLevel(ctx context.Context, userID uint) (int, error) {
	progress, err := s.Progress.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list progress: %w", err)
	}
	var ids []string
	for _, p := range progress {
		if p.Completed {
			ids = append(ids, p.LessonID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	lessons, err := s.Curriculum.ListLessonsByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("list completed lessons: %w", err)
	}
	level := HighestCompletedLevel(lessons)
	if level == 0 {
		return 0, nil
	}
	pathway := util.ClampInt(level+1, util.MinDifficulty, util.MaxDifficulty)
	if err := s.Users.UpdateLiteracy(ctx, userID, level, pathway, false); err != nil {
		return 0, fmt.Errorf("update literacy level: %w", err)
	}
	return level, nil
}
