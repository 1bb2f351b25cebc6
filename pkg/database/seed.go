package database

import (
	"credahead_backend/internal/config"
	"credahead_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dummyScoreDistribution 种子分数分布（score -> 数量），让百分位在早期也有意义
var dummyScoreDistribution = map[int]int{
	1: 4, 2: 8, 3: 14, 4: 20, 5: 24, 6: 20, 7: 14, 8: 9, 9: 5, 10: 2,
}

func Seed(db *gorm.DB, seed config.SeedConfig) error {
	modules := make([]model.Module, len(model.DefaultModules))
	copy(modules, model.DefaultModules)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "module_id"}},
		DoNothing: true,
	}).Create(&modules).Error; err != nil {
		return err
	}

	if !seed.DummyScores {
		return nil
	}

	var count int64
	if err := db.Model(&model.Score{}).Where("is_dummy = ?", true).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var scores []model.Score
	for score := 1; score <= 10; score++ {
		for i := 0; i < dummyScoreDistribution[score]; i++ {
			scores = append(scores, model.Score{Score: score, IsDummy: true})
		}
	}
	return db.CreateInBatches(scores, 50).Error
}
