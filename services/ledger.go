package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/pointsplay/models"
)

// Entry is one requested balance change.
type Entry struct {
	UserID  uint
	Amount  int64
	Reason  models.PointReason
	Notes   string
	AdminID *uint
}

// applyDelta changes a balance and appends the matching ledger row inside tx.
//
// The floor check and the write are a single conditional UPDATE, so two concurrent debits
// can never both pass against the same stale balance; the row lock it takes also orders
// concurrent writers on the same user.
func applyDelta(tx *gorm.DB, en Entry, now time.Time) (*models.PointTransaction, error) {
	if en.Amount == 0 {
		return nil, invalid("amount", "must be nonzero")
	}
	if !en.Reason.Valid() {
		return nil, invalid("reason", fmt.Sprintf("unknown reason %q", en.Reason))
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND points + ? >= 0", en.UserID, en.Amount).
		UpdateColumns(map[string]interface{}{
			"points":     gorm.Expr("points + ?", en.Amount),
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		user, err := loadUser(tx, en.UserID)
		if err != nil {
			return nil, err
		}
		return nil, &InsufficientBalanceError{UserID: en.UserID, Available: user.Points, Requested: -en.Amount}
	}

	var balance int64
	if err := tx.Model(&models.User{}).Select("points").Where("id = ?", en.UserID).Scan(&balance).Error; err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	rec := &models.PointTransaction{
		UserID:       en.UserID,
		AdminID:      en.AdminID,
		Amount:       en.Amount,
		Reason:       en.Reason,
		Notes:        truncate(strings.TrimSpace(en.Notes), 512),
		BalanceAfter: balance,
		CreatedAt:    now,
	}
	if err := tx.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}
	return rec, nil
}

// ApplyDelta applies a signed change to a user's balance and records it, atomically.
// Debits that would take the balance below zero fail with ErrInsufficientBalance and
// change nothing.
func (e *Engine) ApplyDelta(ctx context.Context, en Entry) (*models.PointTransaction, error) {
	var rec *models.PointTransaction
	err := e.settle(ctx, func(u *unit) error {
		r, err := u.apply(en)
		rec = r
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("balance changed",
		zap.Uint("user_id", rec.UserID), zap.Int64("amount", rec.Amount),
		zap.String("reason", string(rec.Reason)), zap.Int64("balance", rec.BalanceAfter))
	return rec, nil
}

// Balance returns the current balance of a user.
func (e *Engine) Balance(ctx context.Context, userID uint) (int64, error) {
	user, err := loadUser(e.db.WithContext(ctx), userID)
	if err != nil {
		return 0, err
	}
	return user.Points, nil
}

// Transactions returns a user's ledger, newest first.
func (e *Engine) Transactions(ctx context.Context, userID uint, limit, offset int) ([]models.PointTransaction, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	db := e.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.PointTransaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	var txs []models.PointTransaction
	if err := db.Where("user_id = ?", userID).
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&txs).Error; err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return txs, total, nil
}

// LedgerReport compares a user's balance with the sum of their ledger.
type LedgerReport struct {
	UserID       uint  `json:"user_id"`
	Balance      int64 `json:"balance"`
	LedgerSum    int64 `json:"ledger_sum"`
	Transactions int64 `json:"transactions"`
	Consistent   bool  `json:"consistent"`
}

// VerifyLedger checks the balance/ledger invariant for one user.
func (e *Engine) VerifyLedger(ctx context.Context, userID uint) (*LedgerReport, error) {
	report := &LedgerReport{UserID: userID}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		report.Balance = user.Points

		var agg struct {
			Total int64
			Count int64
		}
		if err := tx.Model(&models.PointTransaction{}).
			Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
			Where("user_id = ?", userID).
			Scan(&agg).Error; err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}
		report.LedgerSum = agg.Total
		report.Transactions = agg.Count
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Consistent = report.Balance == report.LedgerSum
	if !report.Consistent {
		e.logger.Error("ledger mismatch",
			zap.Uint("user_id", userID), zap.Int64("balance", report.Balance), zap.Int64("ledger_sum", report.LedgerSum))
	}
	return report, nil
}

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
