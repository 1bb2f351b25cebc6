package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name                string    `gorm:"size:100;not null" json:"name"`
	Email               string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password            string    `gorm:"size:100;not null" json:"-"`
	Role                UserRole  `gorm:"size:20;default:'student'" json:"role"`
	LiteracyLevel       int       `gorm:"default:1" json:"literacyLevel"`
	AssessmentTaken     bool      `gorm:"default:false" json:"assessmentTaken"`
	CurrentPathwayLevel int       `gorm:"default:1" json:"currentPathwayLevel"`
	AgeRange            string    `gorm:"size:50" json:"ageRange,omitempty"`
	Location            string    `gorm:"size:100" json:"location,omitempty"`
	Occupation          string    `gorm:"size:100" json:"occupation,omitempty"`
	SurveyCompleted     bool      `gorm:"default:false" json:"surveyCompleted"`
	LastLogin           time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}
