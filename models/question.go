package models

import "time"

// QuestionStatus toggles whether a question can be served for check-in.
type QuestionStatus string

const (
	QuestionActive   QuestionStatus = "active"
	QuestionInactive QuestionStatus = "inactive"
)

// Question is a daily check-in question. DisplayCount and CorrectAnswerCount feed accuracy
// reporting only.
type Question struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	QuestionText       string         `gorm:"type:text;not null" json:"question_text"`
	Answer             string         `gorm:"size:255;not null" json:"-"`
	Points             int64          `gorm:"not null;default:0" json:"points"`
	IsPriority         bool           `gorm:"not null;default:false" json:"is_priority"`
	Status             QuestionStatus `gorm:"size:16;index;not null;default:active" json:"status"`
	DisplayCount       int64          `gorm:"not null;default:0" json:"display_count"`
	CorrectAnswerCount int64          `gorm:"not null;default:0" json:"correct_answer_count"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
