package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/pointsplay/models"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

const referralCodeLength = 8

// Registration is the input for RegisterUser. PasswordHash is already hashed by the caller.
type Registration struct {
	Username     string
	Email        string
	PasswordHash string
	Role         models.Role
	RegisterIP   string
	ReferralCode string
}

// RegisterUser creates an account with a fresh referral code. When ReferralCode names an
// existing user, a pending referral from that user is recorded in the same transaction.
func (e *Engine) RegisterUser(ctx context.Context, in Registration) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.ReferralCode = strings.ToUpper(strings.TrimSpace(in.ReferralCode))
	if !usernamePattern.MatchString(in.Username) {
		return nil, invalid("username", "3-64 letters, digits or _.-")
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		return nil, invalid("role", fmt.Sprintf("unknown role %q", in.Role))
	}

	var user *models.User
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Unscoped().Where("username = ?", in.Username).Count(&taken).Error; err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken > 0 {
			return ErrUsernameTaken
		}

		var referrer *models.User
		if in.ReferralCode != "" {
			var r models.User
			if err := tx.Where("referral_code = ?", in.ReferralCode).First(&r).Error; err != nil {
				if isNotFound(err) {
					return invalid("referral_code", "unknown referral code")
				}
				return fmt.Errorf("load referrer: %w", err)
			}
			referrer = &r
		}

		code, err := newReferralCode(tx)
		if err != nil {
			return err
		}

		now := e.now()
		user = &models.User{
			Username:     in.Username,
			Email:        strings.TrimSpace(in.Email),
			PasswordHash: in.PasswordHash,
			Role:         in.Role,
			RegisterIP:   in.RegisterIP,
			ReferralCode: code,
			CreatedAt:    now,
		}
		if referrer != nil {
			user.ReferredByID = &referrer.ID
		}
		if err := tx.Create(user).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("create user: %w", err)
		}

		if referrer != nil {
			ref := &models.Referral{
				ReferrerID:     referrer.ID,
				ReferredUserID: user.ID,
				Status:         models.ReferralPending,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.Create(ref).Error; err != nil {
				return fmt.Errorf("create referral: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.Uint("user_id", user.ID), zap.String("username", user.Username)}
	if user.ReferredByID != nil {
		fields = append(fields, zap.Uint("referred_by", *user.ReferredByID))
	}
	e.logger.Info("user registered", fields...)
	return user, nil
}

// newReferralCode draws codes until one is unused.
func newReferralCode(tx *gorm.DB) (string, error) {
	for i := 0; i < 5; i++ {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:referralCodeLength]
		var n int64
		if err := tx.Model(&models.User{}).Unscoped().Where("referral_code = ?", code).Count(&n).Error; err != nil {
			return "", fmt.Errorf("check referral code: %w", err)
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique referral code")
}

// UserByUsername looks an account up for login.
func (e *Engine) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := e.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// SetRole changes a user's role. Only admins may do it.
func (e *Engine) SetRole(ctx context.Context, adminID, userID uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	var user *models.User
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireActor(tx, adminID, (*models.User).IsAdmin); err != nil {
			return err
		}
		var err error
		if user, err = loadUser(tx, userID); err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("role", role).Error; err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		user.Role = role
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("role changed", zap.Uint("admin_id", adminID), zap.Uint("user_id", userID), zap.String("role", string(role)))
	return user, nil
}
