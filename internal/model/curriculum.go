package model

import "gorm.io/datatypes"

// Module 课程模块，结果统计时使用的固定参考数据
// swagger:model Module
type Module struct {
	BaseModel
	ModuleID string `gorm:"size:20;uniqueIndex;not null" json:"moduleId"`
	Name     string `gorm:"size:255;not null" json:"name"`
}

func (Module) TableName() string {
	return "modules"
}

// DefaultModules is the fixed curriculum used for per-module result breakdowns.
var DefaultModules = []Module{
	{ModuleID: "M001", Name: "Money Fundamentals"},
	{ModuleID: "M002", Name: "Introduction to Banking"},
	{ModuleID: "M003", Name: "UPI & Digital Banking"},
	{ModuleID: "M004", Name: "Saving"},
	{ModuleID: "M005", Name: "Investing"},
	{ModuleID: "M006", Name: "Borrowing & Debt"},
	{ModuleID: "M007", Name: "Credit & Credit Score"},
	{ModuleID: "M008", Name: "Financial Planning & Security"},
}

// swagger:model Lesson
type Lesson struct {
	BaseModel
	LessonID       string                      `gorm:"size:50;uniqueIndex;not null" json:"lessonId"`
	Title          string                      `gorm:"size:255;not null" json:"title"`
	Description    string                      `gorm:"type:text" json:"description,omitempty"`
	Level          int                         `gorm:"index;not null" json:"level"`
	ModuleID       string                      `gorm:"size:20;index" json:"moduleId,omitempty"`
	Prerequisites  datatypes.JSONSlice[string] `json:"prerequisites,omitempty"`
	CompletionRate float64                     `gorm:"default:0" json:"completionRate"`
	AvgQuizScore   float64                     `gorm:"default:0" json:"avgQuizScore"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// swagger:model Question
type Question struct {
	BaseModel
	QuestionID    string                      `gorm:"size:50;uniqueIndex;not null" json:"questionId"`
	LessonID      string                      `gorm:"size:50;index" json:"lessonId,omitempty"`
	Text          string                      `gorm:"type:text;not null" json:"text"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer int                         `gorm:"not null" json:"correctAnswer"`
	Difficulty    int                         `gorm:"index;not null" json:"difficulty"` // 1-10
	Explanation   string                      `gorm:"type:text" json:"explanation,omitempty"`
	Tags          datatypes.JSONSlice[string] `json:"tags,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}
