package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/pointsplay/models"
)

func TestSubmitCheckInCorrectAnswer(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	q := env.question("Paris", 10)

	res, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "  paris ")
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, int64(10), res.PointsEarned)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(10), res.Balance)
	assert.Equal(t, "2026-03-02", res.CheckIn.CheckInDate)

	var stored models.Question
	require.NoError(t, env.db.First(&stored, q.ID).Error)
	assert.Equal(t, int64(1), stored.DisplayCount)
	assert.Equal(t, int64(1), stored.CorrectAnswerCount)

	txs := env.transactions(u.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, models.ReasonCheckIn, txs[0].Reason)
	env.requireConsistent(u.ID)
}

func TestSubmitCheckInWrongAnswerStillCounts(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	q := env.question("Paris", 10)

	res, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "London")
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Zero(t, res.PointsEarned)
	assert.Equal(t, 1, res.Streak)
	assert.Empty(t, env.transactions(u.ID))

	var stored models.Question
	require.NoError(t, env.db.First(&stored, q.ID).Error)
	assert.Equal(t, int64(1), stored.DisplayCount)
	assert.Zero(t, stored.CorrectAnswerCount)
}

func TestSubmitCheckInOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	q := env.question("Paris", 10)

	_, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
	require.NoError(t, err)

	_, err = env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
	require.ErrorIs(t, err, ErrAlreadyCheckedIn)

	assert.Equal(t, int64(10), env.balance(u.ID))
	var n int64
	require.NoError(t, env.db.Model(&models.CheckIn{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	// the next calendar day is open again
	env.clock.AddDays(1)
	res, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak)
}

func TestCheckInDayFollowsLocation(t *testing.T) {
	shanghai := time.FixedZone("UTC+8", 8*3600)
	env := newTestEnvWith(t, func(s *Settings) { s.Location = shanghai })
	u := env.user("alice", 0)
	q := env.question("Paris", 10)

	// 2026-03-02 09:00 UTC is 17:00 in UTC+8; 20:00 UTC is already the next day there
	_, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
	require.NoError(t, err)

	env.clock.mu.Lock()
	env.clock.t = env.clock.t.Add(11 * time.Hour)
	env.clock.mu.Unlock()

	res, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", res.CheckIn.CheckInDate)
	assert.Equal(t, 2, res.Streak)
}

func TestCheckInStreakBonus(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	q := env.question("Paris", 10)

	// six days already behind the user
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", u.ID).UpdateColumns(map[string]interface{}{
		"consecutive_check_ins": 6,
		"last_check_in_date":    "2026-03-01",
	}).Error)

	res, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
	require.NoError(t, err)
	assert.Equal(t, 7, res.Streak)
	assert.Equal(t, int64(50), res.StreakBonus)
	assert.Equal(t, int64(60), res.Balance)

	txs := env.transactions(u.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, models.ReasonStreakBonus, txs[0].Reason)
	assert.Equal(t, int64(50), txs[0].Amount)
	assert.Equal(t, models.ReasonCheckIn, txs[1].Reason)
	assert.Equal(t, int64(10), txs[1].Amount)
	env.requireConsistent(u.ID)
}

func TestCheckInStreakResetsAfterGap(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	q := env.question("Paris", 10)

	for day := 0; day < 3; day++ {
		res, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
		require.NoError(t, err)
		assert.Equal(t, day+1, res.Streak)
		env.clock.AddDays(1)
	}

	env.clock.AddDays(1) // skipped day
	res, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)

	user, err := env.engine.User(env.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.ConsecutiveCheckIns)
}

func TestSubmitCheckInRejectsInactiveQuestion(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	q := env.question("Paris", 10)
	require.NoError(t, env.db.Model(q).UpdateColumn("status", models.QuestionInactive).Error)

	_, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "Paris")
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTodayQuestion(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	env.question("plain", 5)
	priority := env.question("urgent", 5)
	require.NoError(t, env.db.Model(priority).UpdateColumn("is_priority", true).Error)

	dq, err := env.engine.TodayQuestion(env.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, priority.ID, dq.Question.ID)
	assert.Nil(t, dq.CheckIn)

	_, err = env.engine.SubmitCheckIn(env.ctx, u.ID, dq.Question.ID, "wrong")
	require.NoError(t, err)

	dq, err = env.engine.TodayQuestion(env.ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, dq.CheckIn)
	assert.Equal(t, priority.ID, dq.Question.ID)
}

func TestTodayQuestionWithoutQuestions(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)

	_, err := env.engine.TodayQuestion(env.ctx, u.ID)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestSubmitCheckInRequiresTodaysQuestion(t *testing.T) {
	env := newTestEnv(t)
	u := env.user("alice", 0)
	first := env.question("Paris", 5)
	second := env.question("Rome", 50)

	dq, err := env.engine.TodayQuestion(env.ctx, u.ID)
	require.NoError(t, err)
	other := first
	if dq.Question.ID == first.ID {
		other = second
	}

	_, err = env.engine.SubmitCheckIn(env.ctx, u.ID, other.ID, other.Answer)
	require.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, env.balance(u.ID))
	var n int64
	require.NoError(t, env.db.Model(&models.CheckIn{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.Zero(t, n)

	res, err := env.engine.SubmitCheckIn(env.ctx, u.ID, dq.Question.ID, dq.Question.Answer)
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, dq.Question.Points, env.balance(u.ID))
}
