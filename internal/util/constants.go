package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	MinDifficulty = 1
	MaxDifficulty = 10
)
