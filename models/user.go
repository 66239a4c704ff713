package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// User is a player account. Points is a denormalized balance that always equals the sum of
// the user's PointTransaction amounts; it is only ever changed through the ledger.
type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Username            string         `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email               string         `gorm:"size:255" json:"email"`
	PasswordHash        string         `gorm:"size:255" json:"-"`
	Role                Role           `gorm:"size:16;not null;default:user" json:"role"`
	RegisterIP          string         `gorm:"size:45" json:"-"`
	Points              int64          `gorm:"not null;default:0" json:"points"`
	ConsecutiveCheckIns int            `gorm:"not null;default:0" json:"consecutive_check_ins"`
	LastCheckInDate     string         `gorm:"size:10" json:"last_check_in_date"`
	ReferralCode        string         `gorm:"size:16;not null;uniqueIndex" json:"referral_code"`
	ReferredByID        *uint          `gorm:"index" json:"referred_by_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook ensures timestamps and role are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsStaff reports whether the user may manage check-in questions.
func (u *User) IsStaff() bool { return u.Role == RoleStaff || u.Role == RoleAdmin }
