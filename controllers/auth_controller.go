package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/config"
	"github.com/cppla/pointsplay/middleware"
	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

const tokenTTL = 72 * time.Hour

// AuthController handles registration, login and the current account.
type AuthController struct {
	engine *services.Engine
}

// NewAuthController creates a new controller instance.
func NewAuthController(engine *services.Engine) *AuthController {
	return &AuthController{engine: engine}
}

// Register creates a local account. An optional referral_code links the new account to
// its referrer.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username     string `json:"username" binding:"required"`
		Email        string `json:"email"`
		Password     string `json:"password" binding:"required"`
		Confirm      string `json:"confirm"`
		ReferralCode string `json:"referral_code"`
	}
	var req request
	if !bindJSON(ctx, &req) {
		return
	}
	if req.Confirm != "" && req.Password != req.Confirm {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "passwords do not match")
		return
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, err.Error())
		return
	}

	ip := ctx.ClientIP()
	if err := utils.CheckRegistration(ctx.Request.Context(), ip); err != nil {
		utils.Error(ctx, http.StatusTooManyRequests, utils.CodeTooManyRequests, err.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}

	role := models.RoleUser
	if config.Get().IsAdminUsername(req.Username) {
		role = models.RoleAdmin
	}
	user, err := a.engine.RegisterUser(ctx.Request.Context(), services.Registration{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		RegisterIP:   ip,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		utils.RecordRegistrationFailure(ctx.Request.Context(), ip)
		respondError(ctx, err)
		return
	}
	utils.RecordRegistrationSuccess(ctx.Request.Context(), ip)

	a.issueToken(ctx, user)
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	var req request
	if !bindJSON(ctx, &req) {
		return
	}

	user, err := a.engine.UserByUsername(ctx.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		respondError(ctx, err)
		return
	}
	if user == nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized+6, "invalid username or password")
		return
	}
	a.issueToken(ctx, user)
}

func (a *AuthController) issueToken(ctx *gin.Context, user *models.User) {
	token, err := utils.GenerateToken(user.ID, user.Username, string(user.Role), tokenTTL)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	expiresAt, ok := ctx.Get(middleware.ContextTokenExpiryKey)
	exp, _ := expiresAt.(time.Time)
	if strings.TrimSpace(token) == "" || !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	utils.BlacklistToken(token, exp)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current account with its referral progress.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	user, err := a.engine.User(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	referrals, err := a.engine.Referrals(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user, "referrals": referrals})
}
