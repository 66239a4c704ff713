package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/pointsplay/models"
)

func TestApplyDeltaCreditThenDebit(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)

	rec, err := env.engine.ApplyDelta(env.ctx, Entry{UserID: u.ID, Amount: 100, Reason: models.ReasonAdminGrant})
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.BalanceAfter)

	rec, err = env.engine.ApplyDelta(env.ctx, Entry{UserID: u.ID, Amount: -30, Reason: models.ReasonPredictionWin, Notes: "entry"})
	require.NoError(t, err)
	assert.Equal(t, int64(70), rec.BalanceAfter)
	assert.Equal(t, int64(70), env.balance(u.ID))

	txs := env.transactions(u.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(-30), txs[0].Amount, "newest first")
	assert.Equal(t, int64(100), txs[1].Amount)
	env.requireConsistent(u.ID)
}

func TestApplyDeltaDebitToExactlyZero(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 25)

	rec, err := env.engine.ApplyDelta(env.ctx, Entry{UserID: u.ID, Amount: -25, Reason: models.ReasonAdminGrant})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.BalanceAfter)
	env.requireConsistent(u.ID)
}

func TestApplyDeltaInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 10)

	_, err := env.engine.ApplyDelta(env.ctx, Entry{UserID: u.ID, Amount: -11, Reason: models.ReasonAdminGrant})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	var ibe *InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.Equal(t, int64(10), ibe.Available)
	assert.Equal(t, int64(11), ibe.Requested)

	assert.Equal(t, int64(10), env.balance(u.ID))
	assert.Len(t, env.transactions(u.ID), 1)
	env.requireConsistent(u.ID)
}

func TestApplyDeltaRejectsBadEntries(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)

	tests := []struct {
		name string
		en   Entry
		want error
	}{
		{"zero amount", Entry{UserID: u.ID, Amount: 0, Reason: models.ReasonAdminGrant}, ErrValidation},
		{"unknown reason", Entry{UserID: u.ID, Amount: 5, Reason: "gift"}, ErrValidation},
		{"unknown user", Entry{UserID: u.ID + 100, Amount: 5, Reason: models.ReasonAdminGrant}, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.ApplyDelta(env.ctx, tt.en)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, env.transactions(u.ID))
}

func TestApplyDeltaPublishesAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 40)

	_, err := env.engine.ApplyDelta(env.ctx, Entry{UserID: u.ID, Amount: -50, Reason: models.ReasonAdminGrant})
	require.Error(t, err)

	evs := env.events.For(u.ID)
	require.Len(t, evs, 1, "failed debit must not publish")
	assert.Equal(t, int64(40), evs[0].Delta)
	assert.Equal(t, int64(40), evs[0].Balance)
	assert.Equal(t, string(models.ReasonAdminGrant), evs[0].Reason)
	assert.NotEmpty(t, evs[0].ID)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 1000)

	const workers = 50
	const cost = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, refused := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.ApplyDelta(env.ctx, Entry{UserID: u.ID, Amount: -cost, Reason: models.ReasonPredictionWin})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientBalance):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000/cost, succeeded)
	assert.Equal(t, workers-1000/cost, refused)
	assert.Equal(t, int64(1000%cost), env.balance(u.ID))
	env.requireConsistent(u.ID)
}

func TestTransactionsPaging(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	for i := 1; i <= 5; i++ {
		_, err := env.engine.ApplyDelta(env.ctx, Entry{UserID: u.ID, Amount: int64(i), Reason: models.ReasonAdminGrant})
		require.NoError(t, err)
	}

	page, total, err := env.engine.Transactions(env.ctx, u.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(4), page[0].Amount)
	assert.Equal(t, int64(3), page[1].Amount)
}
