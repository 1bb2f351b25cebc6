package service

import (
	"credahead_backend/internal/model"
	"math"
)

const (
	correctStep   = 0.5
	incorrectStep = 1.0

	masteryAccuracy = 0.75
	partialAccuracy = 0.60
	minAttempts     = 2
)

// Response is one answered question inside a session.
type Response struct {
	QuestionID string `json:"questionId"`
	IsCorrect  bool   `json:"isCorrect"`
	Difficulty int    `json:"difficulty"`
}

// AdjustDifficulty moves the running estimate up by half a step on a correct
// answer and down a full step on a miss, clamped to [1, 10].
func AdjustDifficulty(current float64, isCorrect bool) float64 {
	if isCorrect {
		return math.Min(10, current+correctStep)
	}
	return math.Max(1, current-incorrectStep)
}

// DifficultyLevelRange maps a running difficulty to the band of lesson levels
// eligible during the assessment.
func DifficultyLevelRange(difficulty float64) model.LevelRange {
	switch {
	case difficulty <= 3:
		return model.LevelRange{Min: 1, Max: 3}
	case difficulty <= 7:
		return model.LevelRange{Min: 4, Max: 7}
	default:
		return model.LevelRange{Min: 8, Max: 10}
	}
}

type accuracyBucket struct {
	correct int
	total   int
}

func (b accuracyBucket) accuracy() float64 {
	if b.total == 0 {
		return 0
	}
	return float64(b.correct) / float64(b.total)
}

// CalculateLiteracyLevel returns the highest difficulty answered at least
// twice with 75% accuracy, else the highest with 60%, else 1.
func CalculateLiteracyLevel(responses []Response) int {
	buckets := make(map[int]*accuracyBucket)
	for _, r := range responses {
		d := int(math.Round(float64(r.Difficulty)))
		b, ok := buckets[d]
		if !ok {
			b = &accuracyBucket{}
			buckets[d] = b
		}
		b.total++
		if r.IsCorrect {
			b.correct++
		}
	}

	partial := 0
	for level := 10; level >= 1; level-- {
		b, ok := buckets[level]
		if !ok || b.total < minAttempts {
			continue
		}
		acc := b.accuracy()
		if acc >= masteryAccuracy {
			return level
		}
		if acc >= partialAccuracy && partial == 0 {
			partial = level
		}
	}
	if partial > 0 {
		return partial
	}
	return 1
}

// CalculateQuizScore maps percentage correct onto 1..10; no responses scores 0.
func CalculateQuizScore(responses []Response) int {
	if len(responses) == 0 {
		return 0
	}
	// ceil(pct/10) == ceil(correct*10/total), kept in integers
	correct, total := countCorrect(responses), len(responses)
	return (correct*10 + total - 1) / total
}

func countCorrect(responses []Response) int {
	n := 0
	for _, r := range responses {
		if r.IsCorrect {
			n++
		}
	}
	return n
}

// LessonPassPolicy decides whether a finished lesson quiz completes the lesson.
type LessonPassPolicy interface {
	Name() string
	Passed(responses []Response, lessonMaxDifficulty int) bool
}

// MaxDifficultyPassPolicy passes a quiz once any question at the lesson's
// hardest available difficulty was answered correctly.
type MaxDifficultyPassPolicy struct{}

func (MaxDifficultyPassPolicy) Name() string { return "max_difficulty" }

func (MaxDifficultyPassPolicy) Passed(responses []Response, lessonMaxDifficulty int) bool {
	if lessonMaxDifficulty <= 0 {
		return false
	}
	for _, r := range responses {
		if r.IsCorrect && r.Difficulty >= lessonMaxDifficulty {
			return true
		}
	}
	return false
}

// PercentagePassPolicy passes a quiz whose CalculateQuizScore reaches MinScore.
type PercentagePassPolicy struct {
	MinScore int
}

func (PercentagePassPolicy) Name() string { return "percentage" }

func (p PercentagePassPolicy) Passed(responses []Response, _ int) bool {
	if len(responses) == 0 {
		return false
	}
	return CalculateQuizScore(responses) >= p.MinScore
}
