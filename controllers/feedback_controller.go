package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

// FeedbackController handles feedback submission and review.
type FeedbackController struct {
	engine *services.Engine
}

// NewFeedbackController creates a new controller instance.
func NewFeedbackController(engine *services.Engine) *FeedbackController {
	return &FeedbackController{engine: engine}
}

// Submit stores feedback from the caller.
func (f *FeedbackController) Submit(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	fb, err := f.engine.SubmitFeedback(ctx.Request.Context(), userID, utils.SanitizeText(req.Content))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, fb)
}

// List returns feedback filtered by ?status= (admin).
func (f *FeedbackController) List(ctx *gin.Context) {
	limit, _ := pageParams(ctx)
	items, err := f.engine.ListFeedback(ctx.Request.Context(), models.FeedbackStatus(ctx.Query("status")), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, items)
}

// Approve approves feedback and awards the given points (admin).
func (f *FeedbackController) Approve(ctx *gin.Context) {
	reviewerID, _ := getUserID(ctx)
	feedbackID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Points int64  `json:"points" binding:"required"`
		Note   string `json:"note"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	fb, err := f.engine.ApproveFeedback(ctx.Request.Context(), reviewerID, feedbackID, req.Points, utils.SanitizeText(req.Note))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, fb)
}

// Reject closes feedback without a reward (admin).
func (f *FeedbackController) Reject(ctx *gin.Context) {
	reviewerID, _ := getUserID(ctx)
	feedbackID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	// the body is optional
	_ = ctx.ShouldBindJSON(&req)
	fb, err := f.engine.RejectFeedback(ctx.Request.Context(), reviewerID, feedbackID, utils.SanitizeText(req.Note))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, fb)
}

// Suggestion returns an advisory bonus range for feedback (admin).
func (f *FeedbackController) Suggestion(ctx *gin.Context) {
	reviewerID, _ := getUserID(ctx)
	feedbackID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	s, err := f.engine.SuggestBonus(ctx.Request.Context(), reviewerID, feedbackID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, s)
}
