package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/pointsplay/models"
)

// CheckInResult is the outcome of a daily check-in.
type CheckInResult struct {
	CheckIn           models.CheckIn `json:"check_in"`
	IsCorrect         bool           `json:"is_correct"`
	PointsEarned      int64          `json:"points_earned"`
	Streak            int            `json:"streak"`
	StreakBonus       int64          `json:"streak_bonus"`
	ReferralCompleted bool           `json:"referral_completed"`
	Balance           int64          `json:"balance"`
}

// SubmitCheckIn answers today's question for a user. A user checks in at most once per
// calendar day; the second attempt fails with ErrAlreadyCheckedIn and changes nothing.
// questionID must be the question TodayQuestion hands the user for that day.
//
// In one transaction it grades the answer, records the check-in, bumps the question
// counters, credits the award, advances the streak (with its bonus) and progresses a
// pending referral of the user.
func (e *Engine) SubmitCheckIn(ctx context.Context, userID, questionID uint, answer string) (*CheckInResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, invalid("answer", "must not be empty")
	}
	answer = truncate(answer, 255)

	var result *CheckInResult
	err := e.settle(ctx, func(u *unit) error {
		today := e.dayOf(u.now)

		// Lock the user row so concurrent check-ins of one user queue up behind each other.
		var user models.User
		if err := u.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if isNotFound(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if user.LastCheckInDate == today {
			return ErrAlreadyCheckedIn
		}

		q, err := e.pickQuestion(u.tx, user.ID, today)
		if err != nil {
			return err
		}
		if q.ID != questionID {
			return invalid("question_id", "is not today's question")
		}

		correct := answersMatch(answer, q.Answer)
		var earned int64
		if correct {
			earned = q.Points
		}

		streak := 1
		if user.LastCheckInDate != "" && user.LastCheckInDate == previousDay(today) {
			streak = user.ConsecutiveCheckIns + 1
		}

		rec := models.CheckIn{
			UserID:         user.ID,
			CheckInDate:    today,
			QuestionID:     q.ID,
			Answer:         answer,
			IsCorrect:      correct,
			PointsEarned:   earned,
			StreakAchieved: streak,
			CreatedAt:      u.now,
		}
		if err := u.tx.Create(&rec).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyCheckedIn
			}
			return fmt.Errorf("insert check-in: %w", err)
		}

		counters := map[string]interface{}{"display_count": gorm.Expr("display_count + 1")}
		if correct {
			counters["correct_answer_count"] = gorm.Expr("correct_answer_count + 1")
		}
		if err := u.tx.Model(&models.Question{}).Where("id = ?", q.ID).UpdateColumns(counters).Error; err != nil {
			return fmt.Errorf("update question counters: %w", err)
		}

		balance := user.Points
		if earned > 0 {
			tx, err := u.apply(Entry{
				UserID: user.ID,
				Amount: earned,
				Reason: models.ReasonCheckIn,
				Notes:  fmt.Sprintf("daily check-in %s, question #%d", today, q.ID),
			})
			if err != nil {
				return err
			}
			balance = tx.BalanceAfter
		}

		if err := u.tx.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumns(map[string]interface{}{
			"consecutive_check_ins": streak,
			"last_check_in_date":    today,
			"updated_at":            u.now,
		}).Error; err != nil {
			return fmt.Errorf("update streak: %w", err)
		}

		var bonus int64
		if every := e.settings.StreakBonusEvery; every > 0 && e.settings.StreakBonusPoints > 0 && streak%every == 0 {
			tx, err := u.apply(Entry{
				UserID: user.ID,
				Amount: e.settings.StreakBonusPoints,
				Reason: models.ReasonStreakBonus,
				Notes:  fmt.Sprintf("%d-day check-in streak", streak),
			})
			if err != nil {
				return err
			}
			bonus = tx.Amount
			balance = tx.BalanceAfter
		}

		completed, err := e.progressReferral(u, user.ID, streak)
		if err != nil {
			return err
		}

		result = &CheckInResult{
			CheckIn:           rec,
			IsCorrect:         correct,
			PointsEarned:      earned,
			Streak:            streak,
			StreakBonus:       bonus,
			ReferralCompleted: completed,
			Balance:           balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("check-in settled",
		zap.Uint("user_id", userID), zap.Uint("question_id", questionID),
		zap.Bool("correct", result.IsCorrect), zap.Int64("earned", result.PointsEarned),
		zap.Int("streak", result.Streak), zap.Int64("streak_bonus", result.StreakBonus))
	return result, nil
}

// DailyQuestion is the question a user should answer today. CheckIn is set when the user
// has already answered.
type DailyQuestion struct {
	Question models.Question `json:"question"`
	CheckIn  *models.CheckIn `json:"check_in,omitempty"`
}

// TodayQuestion picks the user's question for today. Priority questions are preferred; the
// pick is stable for a user within a day.
func (e *Engine) TodayQuestion(ctx context.Context, userID uint) (*DailyQuestion, error) {
	db := e.db.WithContext(ctx)
	today := e.dayOf(e.now())

	var existing models.CheckIn
	err := db.Where("user_id = ? AND check_in_date = ?", userID, today).First(&existing).Error
	if err == nil {
		var q models.Question
		if err := db.First(&q, existing.QuestionID).Error; err != nil {
			return nil, fmt.Errorf("load answered question: %w", err)
		}
		return &DailyQuestion{Question: q, CheckIn: &existing}, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("load today's check-in: %w", err)
	}

	pick, err := e.pickQuestion(db, userID, today)
	if err != nil {
		return nil, err
	}
	return &DailyQuestion{Question: *pick}, nil
}

// pickQuestion returns the question userID must answer on day. Active priority questions
// win over the rest; the choice hashes userID and day so it is stable within the day.
func (e *Engine) pickQuestion(db *gorm.DB, userID uint, day string) (*models.Question, error) {
	var candidates []models.Question
	if err := db.Where("status = ? AND is_priority = ?", models.QuestionActive, true).Order("id").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("list priority questions: %w", err)
	}
	if len(candidates) == 0 {
		if err := db.Where("status = ?", models.QuestionActive).Order("id").Find(&candidates).Error; err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrQuestionNotFound
	}

	h := fnv.New32a()
	fmt.Fprintf(h, "%d:%s", userID, day)
	return &candidates[int(h.Sum32()%uint32(len(candidates)))], nil
}
