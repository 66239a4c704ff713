package services

import (
	"context"
	"fmt"

	"github.com/cppla/pointsplay/models"
)

// Stats is a snapshot of platform activity.
type Stats struct {
	Users             int64 `json:"users"`
	ActivePredictions int64 `json:"active_predictions"`
	PendingFeedback   int64 `json:"pending_feedback"`
	CheckInsToday     int64 `json:"check_ins_today"`
	PointsCredited    int64 `json:"points_credited"`
	PointsDebited     int64 `json:"points_debited"`
}

// Stats counts users, open work and points moved through the ledger.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	db := e.db.WithContext(ctx)
	s := &Stats{}
	counts := []struct {
		model interface{}
		where string
		arg   interface{}
		out   *int64
	}{
		{&models.User{}, "", nil, &s.Users},
		{&models.Prediction{}, "status = ?", models.PredictionActive, &s.ActivePredictions},
		{&models.Feedback{}, "status = ?", models.FeedbackPending, &s.PendingFeedback},
		{&models.CheckIn{}, "check_in_date = ?", e.dayOf(e.now()), &s.CheckInsToday},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.arg)
		}
		if err := q.Count(c.out).Error; err != nil {
			return nil, fmt.Errorf("count %T: %w", c.model, err)
		}
	}

	var sums struct {
		Credited int64
		Debited  int64
	}
	if err := db.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS credited, " +
			"COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS debited").
		Scan(&sums).Error; err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	s.PointsCredited = sums.Credited
	s.PointsDebited = sums.Debited
	return s, nil
}
