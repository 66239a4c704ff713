package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

// CheckInController handles the daily question check-in.
type CheckInController struct {
	engine *services.Engine
}

// NewCheckInController creates a new controller instance.
func NewCheckInController(engine *services.Engine) *CheckInController {
	return &CheckInController{engine: engine}
}

// Today returns the question the user should answer today, or today's answer if the user
// already checked in.
func (c *CheckInController) Today(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	dq, err := c.engine.TodayQuestion(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	user, err := c.engine.User(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"question":              dq.Question,
		"check_in":              dq.CheckIn,
		"checked_in":            dq.CheckIn != nil,
		"consecutive_check_ins": user.ConsecutiveCheckIns,
		"points":                user.Points,
	})
}

// Submit answers today's question.
func (c *CheckInController) Submit(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	var req struct {
		QuestionID uint   `json:"question_id" binding:"required"`
		Answer     string `json:"answer" binding:"required"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	res, err := c.engine.SubmitCheckIn(ctx.Request.Context(), userID, req.QuestionID, req.Answer)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}
