package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cppla/pointsplay/models"
)

// GrantPoints lets an admin credit or debit a user directly. Debits follow the same
// non-negative floor as every other change: a deduction larger than the balance fails
// with ErrInsufficientBalance and changes nothing.
func (e *Engine) GrantPoints(ctx context.Context, adminID, userID uint, amount int64, notes string) (*models.PointTransaction, error) {
	if amount == 0 {
		return nil, invalid("amount", "must be nonzero")
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		notes = "admin adjustment"
	}

	var rec *models.PointTransaction
	err := e.settle(ctx, func(u *unit) error {
		admin, err := requireActor(u.tx, adminID, (*models.User).IsAdmin)
		if err != nil {
			return err
		}
		rec, err = u.apply(Entry{
			UserID:  userID,
			Amount:  amount,
			Reason:  models.ReasonAdminGrant,
			Notes:   notes,
			AdminID: &admin.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("admin grant",
		zap.Uint("admin_id", adminID), zap.Uint("user_id", userID),
		zap.Int64("amount", amount), zap.Int64("balance", rec.BalanceAfter))
	return rec, nil
}
