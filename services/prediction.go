package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/cppla/pointsplay/models"
)

// PredictionResult is the outcome of one guess.
type PredictionResult struct {
	Success     bool                  `json:"success"`
	IsCorrect   bool                  `json:"is_correct"`
	IsWinner    bool                  `json:"is_winner"`
	PointsSpent int64                 `json:"points_spent"`
	PointsWon   int64                 `json:"points_won"`
	Balance     int64                 `json:"balance"`
	Message     string                `json:"message,omitempty"`
	Guess       models.UserPrediction `json:"guess"`
}

// payoutFor returns round(cost * PayoutRatio), rounding halves away from zero.
func (e *Engine) payoutFor(cost int64) int64 {
	return decimal.NewFromInt(cost).Mul(e.settings.PayoutRatio).Round(0).IntPart()
}

// SubmitPrediction charges the entry fee and grades a guess. The fee and a payout on a
// correct guess are separate ledger rows. The prediction row is locked for the whole
// settlement, so guesses and ClosePrediction on one prediction run one at a time. The
// first correct guess claims the prediction: winner and finished status are set only
// while it is still active and winnerless.
func (e *Engine) SubmitPrediction(ctx context.Context, userID, predictionID uint, guess string) (*PredictionResult, error) {
	guess = strings.TrimSpace(guess)
	if guess == "" {
		return nil, invalid("guess", "must not be empty")
	}
	if len([]rune(guess)) > 255 {
		return nil, invalid("guess", "too long")
	}

	var result *PredictionResult
	err := e.settle(ctx, func(u *unit) error {
		var p models.Prediction
		if err := u.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, predictionID).Error; err != nil {
			if isNotFound(err) {
				return ErrPredictionNotFound
			}
			return fmt.Errorf("load prediction: %w", err)
		}
		if p.Status != models.PredictionActive {
			return ErrPredictionClosed
		}

		fee, err := u.apply(Entry{
			UserID: userID,
			Amount: -p.PointsCost,
			Reason: models.ReasonPredictionWin,
			Notes:  fmt.Sprintf("entry fee: prediction #%d", p.ID),
		})
		if err != nil {
			return err
		}

		r := &PredictionResult{
			Success:     true,
			IsCorrect:   answersMatch(guess, p.Answer),
			PointsSpent: p.PointsCost,
			Balance:     fee.BalanceAfter,
			Message:     "wrong guess",
		}

		if r.IsCorrect {
			r.PointsWon = e.payoutFor(p.PointsCost)
			payout, err := u.apply(Entry{
				UserID: userID,
				Amount: r.PointsWon,
				Reason: models.ReasonPredictionWin,
				Notes:  fmt.Sprintf("win payout: prediction #%d", p.ID),
			})
			if err != nil {
				return err
			}
			r.Balance = payout.BalanceAfter

			claim := u.tx.Model(&models.Prediction{}).
				Where("id = ? AND winner_id IS NULL AND status = ?", p.ID, models.PredictionActive).
				UpdateColumns(map[string]interface{}{
					"winner_id":  userID,
					"status":     models.PredictionFinished,
					"updated_at": u.now,
				})
			if claim.Error != nil {
				return fmt.Errorf("claim prediction: %w", claim.Error)
			}
			// finished by someone else since the read; roll back the fee and payout
			if claim.RowsAffected == 0 {
				return ErrPredictionClosed
			}
			r.IsWinner = true
			r.Message = "correct, you are the winner"
		}

		r.Guess = models.UserPrediction{
			UserID:       userID,
			PredictionID: p.ID,
			Guess:        guess,
			IsCorrect:    r.IsCorrect,
			PointsSpent:  p.PointsCost,
			PointsWon:    r.PointsWon,
			CreatedAt:    u.now,
		}
		if err := u.tx.Create(&r.Guess).Error; err != nil {
			return fmt.Errorf("record guess: %w", err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("prediction settled",
		zap.Uint("user_id", userID), zap.Uint("prediction_id", predictionID),
		zap.Bool("correct", result.IsCorrect), zap.Bool("winner", result.IsWinner),
		zap.Int64("spent", result.PointsSpent), zap.Int64("won", result.PointsWon))
	return result, nil
}

// UserPredictions lists a user's guesses, newest first.
func (e *Engine) UserPredictions(ctx context.Context, userID uint, limit int) ([]models.UserPrediction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []models.UserPrediction
	if err := e.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list guesses: %w", err)
	}
	return out, nil
}
