package models

import "time"

// FeedbackStatus moves one way: pending to approved or rejected.
type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "pending"
	FeedbackApproved FeedbackStatus = "approved"
	FeedbackRejected FeedbackStatus = "rejected"
)

// Feedback is user-submitted feedback an admin may reward with bonus points.
type Feedback struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"index;not null" json:"user_id"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	Status        FeedbackStatus `gorm:"size:16;index;not null;default:pending" json:"status"`
	PointsAwarded int64          `gorm:"not null;default:0" json:"points_awarded"`
	ReviewerID    *uint          `json:"reviewer_id,omitempty"`
	ReviewNote    string         `gorm:"size:512" json:"review_note,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
