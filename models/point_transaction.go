package models

import "time"

// PointReason classifies a ledger entry.
type PointReason string

const (
	ReasonCheckIn       PointReason = "check-in"
	ReasonReferral      PointReason = "referral"
	ReasonFeedback      PointReason = "feedback"
	ReasonPredictionWin PointReason = "prediction-win"
	ReasonAdminGrant    PointReason = "admin-grant"
	ReasonStreakBonus   PointReason = "streak-bonus"
)

// Valid reports whether r is one of the fixed ledger reasons.
func (r PointReason) Valid() bool {
	switch r {
	case ReasonCheckIn, ReasonReferral, ReasonFeedback, ReasonPredictionWin, ReasonAdminGrant, ReasonStreakBonus:
		return true
	}
	return false
}

// PointTransaction is one immutable balance change. Rows are appended, never updated or
// deleted; corrections are new rows with the opposite sign.
type PointTransaction struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UserID       uint        `gorm:"index;not null" json:"user_id"`
	AdminID      *uint       `gorm:"index" json:"admin_id,omitempty"`
	Amount       int64       `gorm:"not null" json:"amount"`
	Reason       PointReason `gorm:"size:32;index;not null" json:"reason"`
	Notes        string      `gorm:"size:512" json:"notes,omitempty"`
	BalanceAfter int64       `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
}
