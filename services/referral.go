package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/cppla/pointsplay/models"
)

// OnCheckInStreakUpdated completes the pending referral of userID once newStreak reaches
// the referral threshold and credits the referrer. It is idempotent: a referral completes
// at most once however often this is called. It reports whether this call completed one.
func (e *Engine) OnCheckInStreakUpdated(ctx context.Context, userID uint, newStreak int) (bool, error) {
	var completed bool
	err := e.settle(ctx, func(u *unit) error {
		var err error
		completed, err = e.progressReferral(u, userID, newStreak)
		return err
	})
	return completed, err
}

func (e *Engine) progressReferral(u *unit, userID uint, streak int) (bool, error) {
	threshold := e.settings.ReferralThreshold
	if threshold <= 0 || streak < threshold {
		return false, nil
	}

	var ref models.Referral
	if err := u.tx.Where("referred_user_id = ? AND status = ?", userID, models.ReferralPending).First(&ref).Error; err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("load referral: %w", err)
	}

	// pending -> completed only succeeds for the first writer
	res := u.tx.Model(&models.Referral{}).
		Where("id = ? AND status = ?", ref.ID, models.ReferralPending).
		UpdateColumns(map[string]interface{}{
			"status":       models.ReferralCompleted,
			"completed_at": u.now,
			"updated_at":   u.now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete referral: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if bonus := e.settings.ReferralBonusPoints; bonus > 0 {
		_, err := u.apply(Entry{
			UserID: ref.ReferrerID,
			Amount: bonus,
			Reason: models.ReasonReferral,
			Notes:  fmt.Sprintf("referral #%d completed by user %d", ref.ID, userID),
		})
		if errors.Is(err, ErrUserNotFound) {
			// referrer account is gone; the referral still completes
			e.logger.Warn("referrer missing, referral bonus skipped",
				zap.Uint("referral_id", ref.ID), zap.Uint("referrer_id", ref.ReferrerID))
			return true, nil
		}
		if err != nil {
			return false, err
		}
	}

	if err := e.referralMilestone(u, ref.ReferrerID); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) referralMilestone(u *unit, referrerID uint) error {
	every := e.settings.ReferralMilestoneEvery
	points := e.settings.ReferralMilestonePoints
	if every <= 0 || points <= 0 {
		return nil
	}

	// Locking read so the count includes referrals completed by transactions that committed
	// while this one waited on the referrer's row.
	var completed int64
	if err := u.tx.Model(&models.Referral{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referrer_id = ? AND status = ?", referrerID, models.ReferralCompleted).
		Count(&completed).Error; err != nil {
		return fmt.Errorf("count completed referrals: %w", err)
	}
	if completed == 0 || completed%int64(every) != 0 {
		return nil
	}

	_, err := u.apply(Entry{
		UserID: referrerID,
		Amount: points,
		Reason: models.ReasonReferral,
		Notes:  fmt.Sprintf("referral milestone: %d completed referrals", completed),
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	return err
}

// ReferralSummary counts a referrer's referrals by status.
type ReferralSummary struct {
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
}

// Referrals summarizes the referrals made by userID.
func (e *Engine) Referrals(ctx context.Context, userID uint) (*ReferralSummary, error) {
	var rows []struct {
		Status models.ReferralStatus
		N      int64
	}
	if err := e.db.WithContext(ctx).Model(&models.Referral{}).
		Select("status, COUNT(*) AS n").
		Where("referrer_id = ?", userID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("summarize referrals: %w", err)
	}
	s := &ReferralSummary{}
	for _, r := range rows {
		switch r.Status {
		case models.ReferralPending:
			s.Pending = r.N
		case models.ReferralCompleted:
			s.Completed = r.N
		}
	}
	return s, nil
}
