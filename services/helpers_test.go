package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/pointsplay/events"
	"github.com/cppla/pointsplay/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) AddDays(n int) {
	c.mu.Lock()
	c.t = c.t.AddDate(0, 0, n)
	c.mu.Unlock()
}

type eventLog struct {
	mu     sync.Mutex
	events []events.BalanceChanged
}

func (l *eventLog) Publish(_ context.Context, ev events.BalanceChanged) error {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
	return nil
}

func (l *eventLog) For(userID uint) []events.BalanceChanged {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.BalanceChanged
	for _, ev := range l.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	t      *testing.T
	ctx    context.Context
	db     *gorm.DB
	engine *Engine
	clock  *fakeClock
	events *eventLog
	seq    int
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "points.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection: transactions queue instead of failing with SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil, opts...)
}

func newTestEnvWith(t *testing.T, tune func(*Settings), opts ...Option) *testEnv {
	t.Helper()
	db := openTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	log := &eventLog{}
	settings := DefaultSettings()
	settings.Location = time.UTC
	if tune != nil {
		tune(&settings)
	}
	all := append([]Option{WithClock(clock.Now), WithPublisher(log)}, opts...)
	return &testEnv{
		t:      t,
		ctx:    context.Background(),
		db:     db,
		engine: NewEngine(db, settings, all...),
		clock:  clock,
		events: log,
	}
}

func (env *testEnv) register(name string, role models.Role, referralCode string) *models.User {
	env.t.Helper()
	u, err := env.engine.RegisterUser(env.ctx, Registration{
		Username:     name,
		PasswordHash: "x",
		Role:         role,
		ReferralCode: referralCode,
	})
	require.NoError(env.t, err)
	return u
}

// user registers a player holding points, funded through the ledger.
func (env *testEnv) user(name string, points int64) *models.User {
	env.t.Helper()
	u := env.register(name, models.RoleUser, "")
	if points != 0 {
		_, err := env.engine.ApplyDelta(env.ctx, Entry{UserID: u.ID, Amount: points, Reason: models.ReasonAdminGrant, Notes: "seed"})
		require.NoError(env.t, err)
		u.Points = points
	}
	return u
}

func (env *testEnv) admin(name string) *models.User {
	env.t.Helper()
	return env.register(name, models.RoleAdmin, "")
}

func (env *testEnv) question(answer string, points int64) *models.Question {
	env.t.Helper()
	q := &models.Question{QuestionText: "q: " + answer, Answer: answer, Points: points, Status: models.QuestionActive}
	require.NoError(env.t, env.db.Create(q).Error)
	return q
}

func (env *testEnv) prediction(answer string, cost int64) *models.Prediction {
	env.t.Helper()
	env.seq++
	a := env.admin(fmt.Sprintf("author%d", env.seq))
	p, err := env.engine.CreatePrediction(env.ctx, a.ID, NewPrediction{Title: "guess " + answer, Answer: answer, PointsCost: cost})
	require.NoError(env.t, err)
	return p
}

func (env *testEnv) balance(userID uint) int64 {
	env.t.Helper()
	b, err := env.engine.Balance(env.ctx, userID)
	require.NoError(env.t, err)
	return b
}

func (env *testEnv) transactions(userID uint) []models.PointTransaction {
	env.t.Helper()
	txs, _, err := env.engine.Transactions(env.ctx, userID, 100, 0)
	require.NoError(env.t, err)
	return txs
}

func (env *testEnv) requireConsistent(userID uint) {
	env.t.Helper()
	r, err := env.engine.VerifyLedger(env.ctx, userID)
	require.NoError(env.t, err)
	require.True(env.t, r.Consistent, "balance %d != ledger sum %d", r.Balance, r.LedgerSum)
}
