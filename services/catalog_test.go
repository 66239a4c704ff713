package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/pointsplay/models"
)

func TestQuestionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	staff := env.register("helper", models.RoleStaff, "")
	u := env.user("alice", 0)

	_, err := env.engine.CreateQuestion(env.ctx, u.ID, NewQuestion{QuestionText: "2+2?", Answer: "4", Points: 5})
	assert.ErrorIs(t, err, ErrForbidden)

	q, err := env.engine.CreateQuestion(env.ctx, staff.ID, NewQuestion{QuestionText: "2+2?", Answer: "4", Points: 5})
	require.NoError(t, err)
	assert.Equal(t, models.QuestionActive, q.Status)

	_, err = env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, "4")
	require.NoError(t, err)

	points := int64(8)
	inactive := models.QuestionInactive
	updated, err := env.engine.UpdateQuestion(env.ctx, staff.ID, q.ID, QuestionPatch{Points: &points, Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, int64(8), updated.Points)
	assert.Equal(t, "4", updated.Answer)
	assert.Equal(t, int64(1), updated.DisplayCount, "edits keep counters")

	bogus := models.QuestionStatus("archived")
	_, err = env.engine.UpdateQuestion(env.ctx, staff.ID, q.ID, QuestionPatch{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.engine.UpdateQuestion(env.ctx, staff.ID, q.ID+100, QuestionPatch{Points: &points})
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	active, err := env.engine.ListQuestions(env.ctx, models.QuestionActive)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestQuestionAccuracy(t *testing.T) {
	env := newTestEnv(t)
	q := env.question("Paris", 10)
	for i, answer := range []string{"Paris", "Rome", "paris", "Oslo"} {
		u := env.user("user"+string(rune('a'+i)), 0)
		_, err := env.engine.SubmitCheckIn(env.ctx, u.ID, q.ID, answer)
		require.NoError(t, err)
	}

	stats, err := env.engine.QuestionAccuracy(env.ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(4), stats[0].Displayed)
	assert.Equal(t, int64(2), stats[0].Correct)
	assert.InDelta(t, 0.5, stats[0].Accuracy, 1e-9)
}

func TestCreatePredictionValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin("boss")
	u := env.user("alice", 0)

	_, err := env.engine.CreatePrediction(env.ctx, admin.ID, NewPrediction{Title: "x", Answer: "y", PointsCost: 0})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.engine.CreatePrediction(env.ctx, admin.ID, NewPrediction{Title: "", Answer: "y", PointsCost: 5})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.engine.CreatePrediction(env.ctx, u.ID, NewPrediction{Title: "x", Answer: "y", PointsCost: 5})
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := env.engine.CreatePrediction(env.ctx, admin.ID, NewPrediction{Title: "x", Answer: "y", PointsCost: 5})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, p.AuthorID)

	list, total, err := env.engine.ListPredictions(env.ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}
