package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cppla/pointsplay/ai"
	"github.com/cppla/pointsplay/models"
)

const maxFeedbackLength = 5000

// SubmitFeedback stores a new pending feedback entry.
func (e *Engine) SubmitFeedback(ctx context.Context, userID uint, content string) (*models.Feedback, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}
	if len([]rune(content)) > maxFeedbackLength {
		return nil, invalid("content", fmt.Sprintf("at most %d characters", maxFeedbackLength))
	}
	db := e.db.WithContext(ctx)
	if _, err := loadUser(db, userID); err != nil {
		return nil, err
	}
	now := e.now()
	fb := &models.Feedback{
		UserID:    userID,
		Content:   content,
		Status:    models.FeedbackPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(fb).Error; err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return fb, nil
}

// ListFeedback returns feedback filtered by status, oldest first. An empty status lists all.
func (e *Engine) ListFeedback(ctx context.Context, status models.FeedbackStatus, limit int) ([]models.Feedback, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := e.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Feedback
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return out, nil
}

// review moves pending feedback to status. The status flip is conditional on the row still
// being pending, so a second approval of the same feedback cannot pay twice.
func (e *Engine) review(u *unit, reviewerID, feedbackID uint, status models.FeedbackStatus, points int64, note string) (*models.Feedback, error) {
	reviewer, err := requireActor(u.tx, reviewerID, (*models.User).IsAdmin)
	if err != nil {
		return nil, err
	}
	res := u.tx.Model(&models.Feedback{}).
		Where("id = ? AND status = ?", feedbackID, models.FeedbackPending).
		UpdateColumns(map[string]interface{}{
			"status":         status,
			"points_awarded": points,
			"reviewer_id":    reviewer.ID,
			"review_note":    truncate(strings.TrimSpace(note), 512),
			"reviewed_at":    u.now,
			"updated_at":     u.now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("review feedback: %w", res.Error)
	}

	var fb models.Feedback
	if err := u.tx.First(&fb, feedbackID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyProcessed
	}
	return &fb, nil
}

// ApproveFeedback approves pending feedback and credits its author with points.
func (e *Engine) ApproveFeedback(ctx context.Context, reviewerID, feedbackID uint, points int64, note string) (*models.Feedback, error) {
	if points <= 0 {
		return nil, invalid("points", "must be positive")
	}
	var fb *models.Feedback
	err := e.settle(ctx, func(u *unit) error {
		var err error
		fb, err = e.review(u, reviewerID, feedbackID, models.FeedbackApproved, points, note)
		if err != nil {
			return err
		}
		_, err = u.apply(Entry{
			UserID:  fb.UserID,
			Amount:  points,
			Reason:  models.ReasonFeedback,
			Notes:   fmt.Sprintf("feedback #%d approved", fb.ID),
			AdminID: fb.ReviewerID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("feedback approved",
		zap.Uint("feedback_id", feedbackID), zap.Uint("reviewer_id", reviewerID), zap.Int64("points", points))
	return fb, nil
}

// RejectFeedback closes pending feedback without a reward.
func (e *Engine) RejectFeedback(ctx context.Context, reviewerID, feedbackID uint, note string) (*models.Feedback, error) {
	var fb *models.Feedback
	err := e.settle(ctx, func(u *unit) error {
		var err error
		fb, err = e.review(u, reviewerID, feedbackID, models.FeedbackRejected, 0, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("feedback rejected", zap.Uint("feedback_id", feedbackID), zap.Uint("reviewer_id", reviewerID))
	return fb, nil
}

// BonusSuggestion is advisory output for an admin reviewing feedback.
type BonusSuggestion struct {
	Available  bool           `json:"available"`
	Suggestion *ai.Suggestion `json:"suggestion,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// SuggestBonus asks the configured suggester for a bonus range. It never fails because the
// suggester did: an unavailable or broken suggester yields Available=false and the admin
// enters an amount by hand.
func (e *Engine) SuggestBonus(ctx context.Context, reviewerID, feedbackID uint) (*BonusSuggestion, error) {
	db := e.db.WithContext(ctx)
	if _, err := requireActor(db, reviewerID, (*models.User).IsAdmin); err != nil {
		return nil, err
	}
	var fb models.Feedback
	if err := db.First(&fb, feedbackID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("load feedback: %w", err)
	}

	if e.suggester == nil {
		return &BonusSuggestion{Message: "suggestions are not configured, manual entry required"}, nil
	}
	s, err := e.suggester.SuggestBonusRange(ctx, fb.Content)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		e.logger.Warn("bonus suggestion failed", zap.Uint("feedback_id", feedbackID), zap.Error(err))
		return &BonusSuggestion{Message: "suggestion unavailable, manual entry required"}, nil
	}
	return &BonusSuggestion{Available: true, Suggestion: s}, nil
}
