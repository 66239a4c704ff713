// Package services implements the points ledger and the settlement operations that move
// points: daily check-ins, prediction guesses, referral completion, admin grants and
// feedback rewards.
//
// Every settlement runs inside a single database transaction. A balance change is one
// conditional UPDATE on users.points plus one appended point_transactions row, so the
// denormalized balance and the ledger can never diverge, and a settlement either applies
// completely (balance, ledger, status flips) or not at all.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/pointsplay/ai"
	"github.com/cppla/pointsplay/events"
	"github.com/cppla/pointsplay/models"
)

const dayLayout = "2006-01-02"

// Settings are the tunable amounts and thresholds of the settlement rules.
type Settings struct {
	// StreakBonusEvery awards StreakBonusPoints each time the consecutive check-in count
	// reaches a multiple of it. Zero disables the bonus.
	StreakBonusEvery  int
	StreakBonusPoints int64

	// ReferralThreshold is the consecutive check-in count that completes a referral.
	ReferralThreshold   int
	ReferralBonusPoints int64

	// ReferralMilestoneEvery awards ReferralMilestonePoints to a referrer each time their
	// completed referral count reaches a multiple of it.
	ReferralMilestoneEvery  int
	ReferralMilestonePoints int64

	// PayoutRatio multiplies the entry fee of a correctly guessed prediction.
	PayoutRatio decimal.Decimal

	// Location defines calendar-day boundaries for check-ins.
	Location *time.Location
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		StreakBonusEvery:        7,
		StreakBonusPoints:       50,
		ReferralThreshold:       3,
		ReferralBonusPoints:     100,
		ReferralMilestoneEvery:  10,
		ReferralMilestonePoints: 500,
		PayoutRatio:             decimal.RequireFromString("1.5"),
		Location:                time.Local,
	}
}

// Engine is the settlement engine. It is safe for concurrent use.
type Engine struct {
	db        *gorm.DB
	settings  Settings
	logger    *zap.Logger
	publisher events.Publisher
	suggester ai.Suggester
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPublisher sets where balance events go after commit.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithSuggester enables advisory bonus suggestions for feedback.
func WithSuggester(s ai.Suggester) Option {
	return func(e *Engine) { e.suggester = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine over db.
func NewEngine(db *gorm.DB, settings Settings, opts ...Option) *Engine {
	if settings.Location == nil {
		settings.Location = time.Local
	}
	if settings.PayoutRatio.IsZero() {
		settings.PayoutRatio = decimal.RequireFromString("1.5")
	}
	e := &Engine{
		db:        db,
		settings:  settings,
		logger:    zap.NewNop(),
		publisher: events.Discard,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the active settings.
func (e *Engine) Settings() Settings { return e.settings }

// unit is one settlement in progress: the open transaction and the ledger rows it wrote.
type unit struct {
	tx      *gorm.DB
	now     time.Time
	applied []models.PointTransaction
}

func (u *unit) apply(en Entry) (*models.PointTransaction, error) {
	rec, err := applyDelta(u.tx, en, u.now)
	if err != nil {
		return nil, err
	}
	u.applied = append(u.applied, *rec)
	return rec, nil
}

// settle runs fn in one transaction and publishes a balance event per ledger row once the
// transaction has committed.
func (e *Engine) settle(ctx context.Context, fn func(u *unit) error) error {
	u := &unit{now: e.now()}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u.tx = tx
		u.applied = u.applied[:0]
		return fn(u)
	})
	if err != nil {
		return err
	}
	e.publish(ctx, u.applied)
	return nil
}

func (e *Engine) publish(ctx context.Context, recs []models.PointTransaction) {
	for _, rec := range recs {
		ev := events.BalanceChanged{
			ID:            uuid.NewString(),
			UserID:        rec.UserID,
			TransactionID: rec.ID,
			Delta:         rec.Amount,
			Balance:       rec.BalanceAfter,
			Reason:        string(rec.Reason),
			At:            rec.CreatedAt,
		}
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.logger.Warn("publish balance event failed",
				zap.Uint("user_id", rec.UserID), zap.Uint("transaction_id", rec.ID), zap.Error(err))
		}
	}
}

func (e *Engine) dayOf(t time.Time) string {
	return t.In(e.settings.Location).Format(dayLayout)
}

// previousDay returns the calendar day before day, both as YYYY-MM-DD.
func previousDay(day string) string {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dayLayout)
}

// answersMatch compares answers case-insensitively, ignoring surrounding whitespace.
func answersMatch(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}

// requireActor loads the acting user and checks it with allowed.
func requireActor(tx *gorm.DB, actorID uint, allowed func(*models.User) bool) (*models.User, error) {
	if actorID == 0 {
		return nil, ErrUnauthorized
	}
	var actor models.User
	if err := tx.First(&actor, actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load actor: %w", err)
	}
	if !allowed(&actor) {
		return nil, ErrForbidden
	}
	return &actor, nil
}

func loadUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// User returns a user by id.
func (e *Engine) User(ctx context.Context, userID uint) (*models.User, error) {
	return loadUser(e.db.WithContext(ctx), userID)
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		return string(rs[:n])
	}
	return s
}
