package service

import (
	"testing"

	"credahead_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func responsesAt(difficulty, correct, incorrect int) []Response {
	var out []Response
	for i := 0; i < correct; i++ {
		out = append(out, Response{QuestionID: "c", IsCorrect: true, Difficulty: difficulty})
	}
	for i := 0; i < incorrect; i++ {
		out = append(out, Response{QuestionID: "w", IsCorrect: false, Difficulty: difficulty})
	}
	return out
}

func TestAdjustDifficulty(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		correct  bool
		expected float64
	}{
		{"correct steps up half", 5, true, 5.5},
		{"incorrect steps down one", 5, false, 4},
		{"correct clamps at 10", 9.8, true, 10},
		{"already max", 10, true, 10},
		{"incorrect clamps at 1", 1.5, false, 1},
		{"already min", 1, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AdjustDifficulty(tt.current, tt.correct), 1e-9)
		})
	}
}

func TestAdjustDifficulty_StaysInRange(t *testing.T) {
	for d := 1.0; d <= 10; d += 0.25 {
		up := AdjustDifficulty(d, true)
		down := AdjustDifficulty(d, false)
		assert.GreaterOrEqual(t, up, d)
		assert.LessOrEqual(t, up, 10.0)
		assert.LessOrEqual(t, down, d)
		assert.GreaterOrEqual(t, down, 1.0)
	}
}

func TestDifficultyLevelRange(t *testing.T) {
	tests := []struct {
		difficulty float64
		expected   model.LevelRange
	}{
		{1, model.LevelRange{Min: 1, Max: 3}},
		{3, model.LevelRange{Min: 1, Max: 3}},
		{3.5, model.LevelRange{Min: 4, Max: 7}},
		{7, model.LevelRange{Min: 4, Max: 7}},
		{7.5, model.LevelRange{Min: 8, Max: 10}},
		{10, model.LevelRange{Min: 8, Max: 10}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, DifficultyLevelRange(tt.difficulty), "difficulty %v", tt.difficulty)
	}
}

func TestCalculateLiteracyLevel(t *testing.T) {
	tests := []struct {
		name      string
		responses []Response
		expected  int
	}{
		{"empty defaults to 1", nil, 1},
		{"three correct at 8", responsesAt(8, 3, 0), 8},
		{"single attempt ignored", responsesAt(9, 1, 0), 1},
		{
			name:      "mastery beats higher partial",
			responses: append(responsesAt(9, 2, 1), responsesAt(6, 3, 1)...),
			expected:  6,
		},
		{
			name:      "partial when nothing mastered",
			responses: append(responsesAt(7, 2, 1), responsesAt(5, 3, 2)...),
			expected:  7,
		},
		{
			name:      "below sixty percent everywhere",
			responses: append(responsesAt(8, 1, 1), responsesAt(4, 1, 2)...),
			expected:  1,
		},
		{
			name:      "highest mastered level wins",
			responses: append(responsesAt(3, 4, 0), responsesAt(7, 3, 1)...),
			expected:  7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculateLiteracyLevel(tt.responses))
		})
	}
}

func TestCalculateQuizScore(t *testing.T) {
	assert.Equal(t, 0, CalculateQuizScore(nil))
	assert.Equal(t, 10, CalculateQuizScore(responsesAt(5, 10, 0)))
	assert.Equal(t, 7, CalculateQuizScore(responsesAt(5, 7, 3)))
	// 1/3 = 33.3% -> ceil(3.33)
	assert.Equal(t, 4, CalculateQuizScore(responsesAt(5, 1, 2)))
	assert.Equal(t, 0, CalculateQuizScore(responsesAt(5, 0, 4)))
}

func TestMaxDifficultyPassPolicy(t *testing.T) {
	p := MaxDifficultyPassPolicy{}
	assert.Equal(t, "max_difficulty", p.Name())

	responses := append(responsesAt(4, 5, 0), responsesAt(6, 0, 2)...)
	assert.False(t, p.Passed(responses, 6), "all answers at max difficulty were wrong")

	responses = append(responses, Response{QuestionID: "q", IsCorrect: true, Difficulty: 6})
	assert.True(t, p.Passed(responses, 6))
	assert.False(t, p.Passed(responses, 0), "lesson without questions never passes")
}

func TestPercentagePassPolicy(t *testing.T) {
	p := PercentagePassPolicy{MinScore: 7}
	assert.Equal(t, "percentage", p.Name())
	assert.True(t, p.Passed(responsesAt(2, 7, 3), 10))
	assert.False(t, p.Passed(responsesAt(2, 6, 4), 10))
	assert.False(t, p.Passed(nil, 10))
}

func TestCalculateQuizScore_ExactTenths(t *testing.T) {
	for correct := 0; correct <= 10; correct++ {
		assert.Equal(t, correct, CalculateQuizScore(responsesAt(5, correct, 10-correct)), "correct=%d", correct)
	}
}
