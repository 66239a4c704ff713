package models

import "time"

// CheckIn stores one daily check-in attempt. CheckInDate is the calendar day (YYYY-MM-DD) in
// the configured timezone, computed when the row is written; (user_id, check_in_date) is
// unique.
type CheckIn struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_checkin_user_day" json:"user_id"`
	CheckInDate    string    `gorm:"size:10;not null;uniqueIndex:idx_checkin_user_day" json:"check_in_date"`
	QuestionID     uint      `gorm:"index;not null" json:"question_id"`
	Answer         string    `gorm:"size:255" json:"answer"`
	IsCorrect      bool      `gorm:"not null;default:false" json:"is_correct"`
	PointsEarned   int64     `gorm:"not null;default:0" json:"points_earned"`
	StreakAchieved int       `json:"streak_achieved"`
	CreatedAt      time.Time `json:"created_at"`
}
