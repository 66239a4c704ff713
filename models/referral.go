package models

import "time"

// ReferralStatus is pending until the referred user completes the check-in streak.
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
)

// Referral links a referrer to a user who registered with their code. A user can be
// referred at most once.
type Referral struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ReferrerID     uint           `gorm:"index;not null" json:"referrer_id"`
	ReferredUserID uint           `gorm:"uniqueIndex;not null" json:"referred_user_id"`
	Status         ReferralStatus `gorm:"size:16;index;not null;default:pending" json:"status"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
