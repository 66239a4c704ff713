package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "middleware-test-secret")
	utils.SetRedis(nil)
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUserID(c)})
	})
	r.GET("/x", handlers...)
	r.POST("/x", handlers...)
	return r
}

func token(t *testing.T, id uint, role models.Role) string {
	t.Helper()
	tok, err := utils.GenerateToken(id, "someone", string(role), time.Hour)
	require.NoError(t, err)
	return tok
}

func do(r http.Handler, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := newRouter(AuthRequired())
	tok := token(t, 42, models.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/x", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/x", "Bearer garbage").Code)

	w := do(r, http.MethodGet, "/x", "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":42}`, w.Body.String())

	// query tokens are accepted for GET only
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x?token="+tok, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/x?token="+tok, "").Code)

	utils.BlacklistToken(tok, time.Now().Add(time.Hour))
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/x", "Bearer "+tok).Code)
}

func TestRequireRole(t *testing.T) {
	r := newRouter(AuthRequired(), RequireRole(models.RoleStaff, models.RoleAdmin))

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/x", "Bearer "+token(t, 1, models.RoleUser)).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "Bearer "+token(t, 2, models.RoleStaff)).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/x", "Bearer "+token(t, 3, models.RoleAdmin)).Code)
}

func TestRateLimitPerUser(t *testing.T) {
	r := newRouter(AuthRequired(), RateLimit(1, 2))
	alice := "Bearer " + token(t, 10, models.RoleUser)
	bob := "Bearer " + token(t, 11, models.RoleUser)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/x", alice).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/x", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/x", alice).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/x", bob).Code, "buckets are per user")
}
