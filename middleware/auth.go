package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextRoleKey stores the role claimed by the token.
	ContextRoleKey = "role"
	// ContextTokenKey stores the raw bearer token, used by logout.
	ContextTokenKey = "token"
	// ContextTokenExpiryKey stores the token expiry as time.Time.
	ContextTokenExpiryKey = "token_expiry"
)

// bearerToken extracts the token from the Authorization header. Browsers cannot set
// headers on websocket upgrades, so GET requests may pass it as ?token= instead.
func bearerToken(ctx *gin.Context) (string, int, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		if ctx.Request.Method == http.MethodGet {
			if q := strings.TrimSpace(ctx.Query("token")); q != "" {
				return q, 0, ""
			}
		}
		return "", utils.CodeUnauthorized + 1, "authorization header missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", utils.CodeUnauthorized + 2, "invalid authorization header format"
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", utils.CodeUnauthorized + 3, "empty bearer token"
	}
	return token, 0, ""
}

// AuthRequired ensures the request is authenticated via JWT and stores the actor in the
// Gin context.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, code, msg := bearerToken(ctx)
		if token == "" {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}
		if utils.IsTokenBlacklisted(token) {
			utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized+4, "token revoked")
			ctx.Abort()
			return
		}
		claims, err := utils.ParseToken(token)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized+5, "invalid token")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Set(ContextRoleKey, models.Role(claims.Role))
		ctx.Set(ContextTokenKey, token)
		if claims.ExpiresAt != nil {
			ctx.Set(ContextTokenExpiryKey, claims.ExpiresAt.Time)
		} else {
			ctx.Set(ContextTokenExpiryKey, time.Now().Add(24*time.Hour))
		}
		ctx.Next()
	}
}

// RequireRole rejects actors whose token role is not one of roles. It must run after
// AuthRequired.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role, _ := ctx.Get(ContextRoleKey)
		for _, r := range roles {
			if role == r {
				ctx.Next()
				return
			}
		}
		utils.Error(ctx, http.StatusForbidden, utils.CodeForbidden, "forbidden")
		ctx.Abort()
	}
}

// CurrentUserID returns the authenticated user id, or 0.
func CurrentUserID(ctx *gin.Context) uint {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}
