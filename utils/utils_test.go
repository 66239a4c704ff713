package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "utils-test-secret")
	SetRedis(nil)
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(7, "alice", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)

	_, err = ParseToken(token + "x")
	assert.Error(t, err)

	expired, err := GenerateToken(7, "alice", "user", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)
}

func TestBlacklistInMemory(t *testing.T) {
	BlacklistToken("live", time.Now().Add(time.Hour))
	BlacklistToken("gone", time.Now().Add(-time.Second))
	BlacklistToken("soon", time.Now().Add(50*time.Millisecond))

	assert.True(t, IsTokenBlacklisted("live"))
	assert.False(t, IsTokenBlacklisted("gone"), "expired tokens are never stored")
	assert.False(t, IsTokenBlacklisted("never"))

	removed := purgeBlacklist(time.Now().Add(time.Minute))
	assert.Equal(t, 1, removed)
	assert.True(t, IsTokenBlacklisted("live"))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "great app", SanitizeText(`<b>great</b> app<script>alert(1)</script>`))
	assert.Equal(t, "Tom & Jerry", SanitizeText("  Tom & Jerry "))
}

func TestPasswords(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("short"), ErrWeakPassword)
	require.NoError(t, ValidatePassword("long enough"))

	hash, err := HashPassword("long enough")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "long enough"))
	assert.False(t, CheckPassword(hash, "wrong one"))
}

func TestRegistrationChecksFailOpenWithoutRedis(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, CheckRegistration(ctx, "10.0.0.1"))
	RecordRegistrationFailure(ctx, "10.0.0.1")
	RecordRegistrationSuccess(ctx, "10.0.0.1")
	assert.NoError(t, CheckRegistration(ctx, "10.0.0.1"))
}

func TestGinzapAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	r := gin.New()
	r.Use(Ginzap(logger), RecoveryWithZap(logger))
	r.GET("/ok", func(c *gin.Context) { Success(c, gin.H{"pong": true}) })
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?token=secret&x=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":50000`)

	access := logs.FilterMessage("/ok").All()
	require.Len(t, access, 1)
	assert.Equal(t, "token=REDACTED&x=1", access[0].ContextMap()["query"])
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}
