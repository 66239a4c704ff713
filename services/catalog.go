package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/pointsplay/models"
)

// NewPrediction is the input for CreatePrediction.
type NewPrediction struct {
	Title       string
	Description string
	Answer      string
	PointsCost  int64
}

// CreatePrediction opens a prediction. Only admins may create them.
func (e *Engine) CreatePrediction(ctx context.Context, adminID uint, in NewPrediction) (*models.Prediction, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Answer = strings.TrimSpace(in.Answer)
	switch {
	case in.Title == "":
		return nil, invalid("title", "must not be empty")
	case len([]rune(in.Title)) > 255:
		return nil, invalid("title", "too long")
	case in.Answer == "":
		return nil, invalid("answer", "must not be empty")
	case len([]rune(in.Answer)) > 255:
		return nil, invalid("answer", "too long")
	case in.PointsCost <= 0:
		return nil, invalid("points_cost", "must be positive")
	}

	db := e.db.WithContext(ctx)
	admin, err := requireActor(db, adminID, (*models.User).IsAdmin)
	if err != nil {
		return nil, err
	}
	now := e.now()
	p := &models.Prediction{
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Answer:      in.Answer,
		PointsCost:  in.PointsCost,
		Status:      models.PredictionActive,
		AuthorID:    admin.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(p).Error; err != nil {
		return nil, fmt.Errorf("create prediction: %w", err)
	}
	e.logger.Info("prediction created", zap.Uint("prediction_id", p.ID), zap.Uint("admin_id", adminID), zap.Int64("cost", p.PointsCost))
	return p, nil
}

// ClosePrediction finishes an active prediction without a winner.
func (e *Engine) ClosePrediction(ctx context.Context, adminID, predictionID uint) (*models.Prediction, error) {
	var p models.Prediction
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireActor(tx, adminID, (*models.User).IsAdmin); err != nil {
			return err
		}
		res := tx.Model(&models.Prediction{}).
			Where("id = ? AND status = ?", predictionID, models.PredictionActive).
			UpdateColumns(map[string]interface{}{"status": models.PredictionFinished, "updated_at": e.now()})
		if res.Error != nil {
			return fmt.Errorf("close prediction: %w", res.Error)
		}
		if err := tx.First(&p, predictionID).Error; err != nil {
			if isNotFound(err) {
				return ErrPredictionNotFound
			}
			return fmt.Errorf("load prediction: %w", err)
		}
		if res.RowsAffected == 0 {
			return ErrPredictionClosed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Prediction returns one prediction.
func (e *Engine) Prediction(ctx context.Context, predictionID uint) (*models.Prediction, error) {
	var p models.Prediction
	if err := e.db.WithContext(ctx).First(&p, predictionID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("load prediction: %w", err)
	}
	return &p, nil
}

// ListPredictions lists predictions, newest first. An empty status lists all.
func (e *Engine) ListPredictions(ctx context.Context, status models.PredictionStatus, limit, offset int) ([]models.Prediction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	filter := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			return db.Where("status = ?", status)
		}
		return db
	}
	db := e.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.Prediction{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count predictions: %w", err)
	}
	var out []models.Prediction
	if err := db.Scopes(filter).Order("id DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list predictions: %w", err)
	}
	return out, total, nil
}

// NewQuestion is the input for CreateQuestion.
type NewQuestion struct {
	QuestionText string
	Answer       string
	Points       int64
	IsPriority   bool
}

func validateQuestion(text, answer string, points int64) error {
	switch {
	case text == "":
		return invalid("question_text", "must not be empty")
	case answer == "":
		return invalid("answer", "must not be empty")
	case len([]rune(answer)) > 255:
		return invalid("answer", "too long")
	case points < 0:
		return invalid("points", "must not be negative")
	}
	return nil
}

// CreateQuestion adds a check-in question. Staff and admins may manage questions.
func (e *Engine) CreateQuestion(ctx context.Context, staffID uint, in NewQuestion) (*models.Question, error) {
	in.QuestionText = strings.TrimSpace(in.QuestionText)
	in.Answer = strings.TrimSpace(in.Answer)
	if err := validateQuestion(in.QuestionText, in.Answer, in.Points); err != nil {
		return nil, err
	}
	db := e.db.WithContext(ctx)
	if _, err := requireActor(db, staffID, (*models.User).IsStaff); err != nil {
		return nil, err
	}
	now := e.now()
	q := &models.Question{
		QuestionText: in.QuestionText,
		Answer:       in.Answer,
		Points:       in.Points,
		IsPriority:   in.IsPriority,
		Status:       models.QuestionActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(q).Error; err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// QuestionPatch carries the fields UpdateQuestion should change; nil fields are kept.
type QuestionPatch struct {
	QuestionText *string
	Answer       *string
	Points       *int64
	IsPriority   *bool
	Status       *models.QuestionStatus
}

// UpdateQuestion edits a question. Counters are never reset by an edit.
func (e *Engine) UpdateQuestion(ctx context.Context, staffID, questionID uint, patch QuestionPatch) (*models.Question, error) {
	var q models.Question
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireActor(tx, staffID, (*models.User).IsStaff); err != nil {
			return err
		}
		if err := tx.First(&q, questionID).Error; err != nil {
			if isNotFound(err) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("load question: %w", err)
		}

		if patch.QuestionText != nil {
			q.QuestionText = strings.TrimSpace(*patch.QuestionText)
		}
		if patch.Answer != nil {
			q.Answer = strings.TrimSpace(*patch.Answer)
		}
		if patch.Points != nil {
			q.Points = *patch.Points
		}
		if patch.IsPriority != nil {
			q.IsPriority = *patch.IsPriority
		}
		if patch.Status != nil {
			if *patch.Status != models.QuestionActive && *patch.Status != models.QuestionInactive {
				return invalid("status", fmt.Sprintf("unknown status %q", *patch.Status))
			}
			q.Status = *patch.Status
		}
		if err := validateQuestion(q.QuestionText, q.Answer, q.Points); err != nil {
			return err
		}

		return tx.Model(&models.Question{}).Where("id = ?", q.ID).UpdateColumns(map[string]interface{}{
			"question_text": q.QuestionText,
			"answer":        q.Answer,
			"points":        q.Points,
			"is_priority":   q.IsPriority,
			"status":        q.Status,
			"updated_at":    e.now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuestions lists questions for staff, newest first. An empty status lists all.
func (e *Engine) ListQuestions(ctx context.Context, status models.QuestionStatus) ([]models.Question, error) {
	q := e.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Question
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return out, nil
}

// QuestionStats is the accuracy of one question across all check-ins.
type QuestionStats struct {
	QuestionID   uint    `json:"question_id"`
	QuestionText string  `json:"question_text"`
	Displayed    int64   `json:"display_count"`
	Correct      int64   `json:"correct_answer_count"`
	Accuracy     float64 `json:"accuracy"`
}

// QuestionAccuracy reports display and correct counts per question, in id order.
func (e *Engine) QuestionAccuracy(ctx context.Context) ([]QuestionStats, error) {
	var qs []models.Question
	if err := e.db.WithContext(ctx).Order("id ASC").Find(&qs).Error; err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]QuestionStats, 0, len(qs))
	for _, q := range qs {
		s := QuestionStats{
			QuestionID:   q.ID,
			QuestionText: q.QuestionText,
			Displayed:    q.DisplayCount,
			Correct:      q.CorrectAnswerCount,
		}
		if q.DisplayCount > 0 {
			s.Accuracy = float64(q.CorrectAnswerCount) / float64(q.DisplayCount)
		}
		out = append(out, s)
	}
	return out, nil
}

// ListActivePredictions lists predictions still open for guesses.
func (e *Engine) ListActivePredictions(ctx context.Context, limit, offset int) ([]models.Prediction, int64, error) {
	return e.ListPredictions(ctx, models.PredictionActive, limit, offset)
}
