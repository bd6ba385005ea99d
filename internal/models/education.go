package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EducationArticle struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"` // markdown
	Summary   string    `gorm:"size:500" json:"summary"`
	Category  string    `gorm:"size:50;index" json:"category"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *EducationArticle) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type EducationQuiz struct {
	ID            string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Question      string                      `gorm:"type:text;not null" json:"question"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer string                      `gorm:"not null" json:"correctAnswer,omitempty"`
	PointsReward  int                         `gorm:"default:10;not null" json:"pointsReward"`
	Category      string                      `gorm:"size:50" json:"category"`
	CreatedAt     time.Time                   `json:"createdAt"`
}

func (q *EducationQuiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// QuizAttempt allows one attempt per (user, quiz).
type QuizAttempt struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_user_quiz" json:"userId"`
	User      *User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	QuizID    string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_user_quiz" json:"quizId"`
	Quiz      *EducationQuiz `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	IsCorrect bool           `json:"isCorrect"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (a *QuizAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
