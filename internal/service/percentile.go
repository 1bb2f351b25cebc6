package service

import (
	"context"
	"credahead_backend/pkg/logger"
	"math"

	"go.uber.org/zap"
)

const defaultPercentile = 50

type ScoreSource interface {
	AllScores(ctx context.Context) ([]int, error)
}

// PercentileRank 中位秩：低于 score 的数量加上相等数量的一半
func PercentileRank(population []int, score int) int {
	if len(population) == 0 {
		return defaultPercentile
	}
	below, tied := 0, 0
	for _, s := range population {
		switch {
		case s < score:
			below++
		case s == score:
			tied++
		}
	}
	return int(math.Round((float64(below) + 0.5*float64(tied)) / float64(len(population)) * 100))
}

type PercentileService struct {
	scores ScoreSource
}

func NewPercentileService(scores ScoreSource) *PercentileService {
	return &PercentileService{scores: scores}
}

// CalculatePercentile ranks score against every stored score, seeded ones
// included. Read failures yield 50.
func (s *PercentileService) CalculatePercentile(ctx context.Context, score int) int {
	population, err := s.scores.AllScores(ctx)
	if err != nil {
		logger.Log.Error("score population fetch failed", zap.Error(err))
		return defaultPercentile
	}
	return PercentileRank(population, score)
}
