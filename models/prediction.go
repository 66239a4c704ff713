package models

import "time"

// PredictionStatus is the lifecycle state of a prediction.
type PredictionStatus string

const (
	PredictionActive   PredictionStatus = "active"
	PredictionFinished PredictionStatus = "finished"
)

// Prediction is an admin-created question users pay to guess. WinnerID is set at most once,
// by the first correct guess, and moves the prediction to finished.
type Prediction struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Answer      string           `gorm:"size:255;not null" json:"-"`
	PointsCost  int64            `gorm:"not null" json:"points_cost"`
	Status      PredictionStatus `gorm:"size:16;index;not null;default:active" json:"status"`
	AuthorID    uint             `gorm:"index;not null" json:"author_id"`
	WinnerID    *uint            `gorm:"index" json:"winner_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// UserPrediction is one guess against a prediction. Users may guess the same prediction
// several times as long as they can pay every entry fee.
type UserPrediction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	PredictionID uint      `gorm:"index;not null" json:"prediction_id"`
	Guess        string    `gorm:"size:255;not null" json:"guess"`
	IsCorrect    bool      `gorm:"not null;default:false" json:"is_correct"`
	PointsSpent  int64     `gorm:"not null" json:"points_spent"`
	PointsWon    int64     `gorm:"not null;default:0" json:"points_won"`
	CreatedAt    time.Time `json:"created_at"`
}
