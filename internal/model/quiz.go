package model

import "time"

type SessionType string

const (
	SessionAssessment SessionType = "assessment"
	SessionLesson     SessionType = "lesson"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// AssessmentContext is the history context shared by all assessment sessions.
// Lesson quizzes use the lesson id as their context.
const AssessmentContext = "assessment"

// QuizSession 一次测评或课程小测
// swagger:model QuizSession
type QuizSession struct {
	UUIDBase
	UserID            uint          `gorm:"index;not null" json:"userId"`
	LessonID          *string       `gorm:"size:50;index" json:"lessonId,omitempty"`
	SessionType       SessionType   `gorm:"size:20;index;not null" json:"sessionType"`
	CurrentDifficulty float64       `gorm:"not null" json:"currentDifficulty"`
	QuestionsAnswered int           `gorm:"default:0" json:"questionsAnswered"`
	CorrectAnswers    int           `gorm:"default:0" json:"correctAnswers"`
	CurrentQuestionID *string       `gorm:"size:50" json:"currentQuestionId,omitempty"`
	Status            SessionStatus `gorm:"size:20;index;default:'active'" json:"status"`
	StartedAt         time.Time     `json:"startedAt"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
	LastActivityAt    time.Time     `gorm:"index" json:"lastActivityAt"`
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}

// Context returns the history context the session selects questions in.
func (s *QuizSession) Context() string {
	if s.SessionType == SessionLesson && s.LessonID != nil {
		return *s.LessonID
	}
	return AssessmentContext
}

func (s *QuizSession) IsActive() bool {
	return s.Status == SessionActive
}

// UserQuestionHistory is append-only; rows are never updated.
// swagger:model UserQuestionHistory
type UserQuestionHistory struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            uint      `gorm:"index:idx_history_user_context;not null" json:"userId"`
	QuestionID        string    `gorm:"size:50;index;not null" json:"questionId"`
	Context           string    `gorm:"size:50;index:idx_history_user_context;not null" json:"context"`
	SessionID         string    `gorm:"size:36;index" json:"sessionId,omitempty"`
	AnsweredCorrectly bool      `json:"answeredCorrectly"`
	DifficultyAtTime  int       `json:"difficultyAtTime"`
	AnsweredAt        time.Time `gorm:"index" json:"answeredAt"`
}

func (UserQuestionHistory) TableName() string {
	return "user_question_history"
}

// swagger:model UserProgress
type UserProgress struct {
	BaseModel
	UserID      uint       `gorm:"uniqueIndex:idx_progress_user_lesson;not null" json:"userId"`
	LessonID    string     `gorm:"size:50;uniqueIndex:idx_progress_user_lesson;not null" json:"lessonId"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	Score       int        `gorm:"default:0" json:"score"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (UserProgress) TableName() string {
	return "user_progress"
}

// Score 分数总体，用于百分位计算；IsDummy 为种子数据
// swagger:model Score
type Score struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Score     int       `gorm:"index;not null" json:"score"`
	IsDummy   bool      `gorm:"default:false" json:"isDummy"`
	UserID    *uint     `gorm:"index" json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Score) TableName() string {
	return "scores"
}

// LevelRange is an inclusive band of lesson levels.
type LevelRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r LevelRange) Contains(level int) bool {
	return level >= r.Min && level <= r.Max
}
