package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/pointsplay/middleware"
	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	id := middleware.CurrentUserID(ctx)
	return id, id != 0
}

// parseID reads a positive numeric path parameter.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// pageParams reads ?limit= and ?offset=; the engine clamps the values.
func pageParams(ctx *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// respondError maps engine errors onto HTTP status and business codes.
func respondError(ctx *gin.Context, err error) {
	var ibe *services.InsufficientBalanceError
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ibe):
		utils.Respond(ctx, http.StatusConflict, utils.CodeInsufficientBalance, "insufficient balance", gin.H{
			"available": ibe.Available,
			"requested": ibe.Requested,
		})
	case errors.As(err, &ve):
		utils.Respond(ctx, http.StatusBadRequest, utils.CodeValidation, ve.Error(), gin.H{"field": ve.Field})
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.Error(ctx, http.StatusConflict, utils.CodeInsufficientBalance, err.Error())
	case errors.Is(err, services.ErrAlreadyCheckedIn):
		utils.Error(ctx, http.StatusConflict, utils.CodeAlreadyCheckedIn, err.Error())
	case errors.Is(err, services.ErrPredictionClosed):
		utils.Error(ctx, http.StatusConflict, utils.CodePredictionClosed, err.Error())
	case errors.Is(err, services.ErrAlreadyProcessed):
		utils.Error(ctx, http.StatusConflict, utils.CodeAlreadyProcessed, err.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		utils.Error(ctx, http.StatusConflict, utils.CodeUsernameTaken, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, utils.CodeForbidden, err.Error())
	case services.IsNotFound(err):
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, err.Error())
	default:
		utils.Logger.Error("request failed",
			zap.String("path", ctx.FullPath()), zap.Uint("user_id", middleware.CurrentUserID(ctx)), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, utils.CodeInternal, "internal server error")
	}
}

func bindJSON(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "invalid request payload")
		return false
	}
	return true
}
