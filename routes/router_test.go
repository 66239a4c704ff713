package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/pointsplay/config"
	"github.com/cppla/pointsplay/events"
	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "router-test-secret")
	os.Setenv("ADMIN_USERNAMES", "root")
	utils.SetRedis(nil)
	os.Exit(m.Run())
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiSuite struct {
	t      *testing.T
	router *gin.Engine
	hub    *events.Hub
}

func newAPISuite(t *testing.T) *apiSuite {
	t.Helper()
	cfg := config.AppConfig{
		GinMode:            "test",
		DBDriver:           "sqlite",
		SQLitePath:         filepath.Join(t.TempDir(), "api.db"),
		LogLevel:           "silent",
		RateLimitPerMinute: 10000,
		AllowedOrigins:     []string{"*"},
	}
	db, err := config.OpenDatabase(cfg, models.All()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	settings := services.DefaultSettings()
	settings.Location = time.UTC
	hub := events.NewHub(nil)
	engine := services.NewEngine(db, settings, services.WithPublisher(hub))
	return &apiSuite{t: t, router: SetupRouter(cfg, engine, hub), hub: hub}
}

func (s *apiSuite) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID   uint   `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func (s *apiSuite) register(username string) session {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"password": "correct-horse-battery",
	})
	require.Equal(s.t, http.StatusOK, status, env.Message)
	return decode[session](s.t, env)
}

func (s *apiSuite) balance(token string) int64 {
	s.t.Helper()
	status, env := s.do(http.MethodGet, "/api/v1/points/transactions", token, nil)
	require.Equal(s.t, http.StatusOK, status)
	return decode[struct {
		Balance int64 `json:"balance"`
	}](s.t, env).Balance
}

func TestAccessControl(t *testing.T) {
	s := newAPISuite(t)
	alice := s.register("alice")

	status, env := s.do(http.MethodGet, "/api/v1/checkin/today", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotZero(t, env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/admin/grants", alice.Token, gin.H{"user_id": alice.User.ID, "amount": 10})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, utils.CodeForbidden, env.Code)

	status, _ = s.do(http.MethodPost, "/api/v1/staff/questions", alice.Token, gin.H{"question_text": "q", "answer": "a"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, utils.CodeNotFound, env.Code)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	s := newAPISuite(t)
	s.register("alice")

	status, env := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "alice",
		"password": "correct-horse-battery",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.CodeUsernameTaken, env.Code)
}

func TestSettlementFlow(t *testing.T) {
	s := newAPISuite(t)
	root := s.register("root")
	require.Equal(t, "admin", root.User.Role)
	alice := s.register("alice")
	bob := s.register("bob")

	// admin grant
	status, env := s.do(http.MethodPost, "/api/v1/admin/grants", root.Token, gin.H{
		"user_id": alice.User.ID, "amount": 100, "notes": "welcome",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, int64(100), s.balance(alice.Token))

	// check-in
	status, env = s.do(http.MethodPost, "/api/v1/staff/questions", root.Token, gin.H{
		"question_text": "6 x 7?", "answer": "42", "points": 10,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = s.do(http.MethodGet, "/api/v1/checkin/today", alice.Token, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	today := decode[struct {
		Question struct {
			ID     uint   `json:"id"`
			Answer string `json:"answer"`
		} `json:"question"`
		CheckedIn bool `json:"checked_in"`
	}](t, env)
	assert.False(t, today.CheckedIn)
	assert.Empty(t, today.Question.Answer, "answers are never shown to players")

	status, env = s.do(http.MethodPost, "/api/v1/checkin", alice.Token, gin.H{"question_id": today.Question.ID, "answer": " 42 "})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, int64(110), s.balance(alice.Token))

	status, env = s.do(http.MethodPost, "/api/v1/checkin", alice.Token, gin.H{"question_id": today.Question.ID, "answer": "42"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.CodeAlreadyCheckedIn, env.Code)

	// prediction
	status, env = s.do(http.MethodPost, "/api/v1/admin/predictions", root.Token, gin.H{
		"title": "Sky colour", "answer": "blue", "points_cost": 30,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	pred := decode[struct {
		ID uint `json:"id"`
	}](t, env)
	guessPath := fmt.Sprintf("/api/v1/predictions/%d/guess", pred.ID)

	status, env = s.do(http.MethodPost, guessPath, alice.Token, gin.H{"guess": "red"})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, int64(80), s.balance(alice.Token))

	status, env = s.do(http.MethodPost, guessPath, alice.Token, gin.H{"guess": "Blue"})
	require.Equal(t, http.StatusOK, status, env.Message)
	res := decode[services.PredictionResult](t, env)
	assert.True(t, res.IsCorrect)
	assert.True(t, res.IsWinner)
	assert.Equal(t, int64(45), res.PointsWon)
	assert.Equal(t, int64(95), res.Balance)

	status, env = s.do(http.MethodPost, guessPath, alice.Token, gin.H{"guess": "blue"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.CodePredictionClosed, env.Code)

	// bob cannot afford a guess
	status, env = s.do(http.MethodPost, "/api/v1/admin/predictions", root.Token, gin.H{
		"title": "Coin", "answer": "heads", "points_cost": 5,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	coin := decode[struct {
		ID uint `json:"id"`
	}](t, env)
	status, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/predictions/%d/guess", coin.ID), bob.Token, gin.H{"guess": "tails"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.CodeInsufficientBalance, env.Code)
	assert.Equal(t, int64(0), s.balance(bob.Token))

	// feedback
	status, env = s.do(http.MethodPost, "/api/v1/feedback", alice.Token, gin.H{"content": "<b>The streak page is slow</b>"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	fb := decode[models.Feedback](t, env)
	assert.Equal(t, "The streak page is slow", fb.Content)

	approvePath := fmt.Sprintf("/api/v1/admin/feedback/%d/approve", fb.ID)
	status, env = s.do(http.MethodPost, approvePath, root.Token, gin.H{"points": 20})
	require.Equal(t, http.StatusOK, status, env.Message)
	status, env = s.do(http.MethodPost, approvePath, root.Token, gin.H{"points": 20})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.CodeAlreadyProcessed, env.Code)
	assert.Equal(t, int64(115), s.balance(alice.Token))

	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/admin/feedback/%d/suggestion", fb.ID), root.Token, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.False(t, decode[services.BonusSuggestion](t, env).Available)

	// ledger integrity
	status, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/admin/users/%d/ledger/verify", alice.User.ID), root.Token, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	report := decode[services.LedgerReport](t, env)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(115), report.Balance)

	status, env = s.do(http.MethodGet, "/api/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(3), decode[services.Stats](t, env).Users)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newAPISuite(t)
	alice := s.register("alice")

	status, _ := s.do(http.MethodGet, "/api/v1/auth/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/logout", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/api/v1/auth/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestEventStreamDeliversOwnBalanceChanges(t *testing.T) {
	s := newAPISuite(t)
	root := s.register("root")
	alice := s.register("alice")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?token=" + alice.Token
	conn, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(ws.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, env := s.do(http.MethodPost, "/api/v1/admin/grants", root.Token, gin.H{"user_id": alice.User.ID, "amount": 25})
	require.Equal(t, http.StatusOK, status, env.Message)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev events.BalanceChanged
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, alice.User.ID, ev.UserID)
	assert.Equal(t, int64(25), ev.Delta)
	assert.Equal(t, int64(25), ev.Balance)
	assert.Equal(t, string(models.ReasonAdminGrant), ev.Reason)
}
