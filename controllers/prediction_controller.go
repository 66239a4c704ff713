package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

// PredictionController serves predictions to players and admins.
type PredictionController struct {
	engine *services.Engine
}

// NewPredictionController creates a new controller instance.
func NewPredictionController(engine *services.Engine) *PredictionController {
	return &PredictionController{engine: engine}
}

// ListActive lists predictions open for guesses.
func (p *PredictionController) ListActive(ctx *gin.Context) {
	limit, offset := pageParams(ctx)
	items, total, err := p.engine.ListActivePredictions(ctx.Request.Context(), limit, offset)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, utils.Page{Items: items, Total: total, Limit: limit, Offset: offset})
}

// Guess pays the entry fee and grades a guess.
func (p *PredictionController) Guess(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	predictionID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Guess string `json:"guess" binding:"required"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	res, err := p.engine.SubmitPrediction(ctx.Request.Context(), userID, predictionID, req.Guess)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// MyGuesses lists the caller's recent guesses.
func (p *PredictionController) MyGuesses(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	limit, _ := pageParams(ctx)
	items, err := p.engine.UserPredictions(ctx.Request.Context(), userID, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, items)
}

// Create opens a new prediction (admin).
func (p *PredictionController) Create(ctx *gin.Context) {
	adminID, _ := getUserID(ctx)
	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		Answer      string `json:"answer" binding:"required"`
		PointsCost  int64  `json:"points_cost" binding:"required"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	pred, err := p.engine.CreatePrediction(ctx.Request.Context(), adminID, services.NewPrediction{
		Title:       utils.SanitizeText(req.Title),
		Description: utils.SanitizeText(req.Description),
		Answer:      req.Answer,
		PointsCost:  req.PointsCost,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, pred)
}

// Close finishes a prediction without a winner (admin).
func (p *PredictionController) Close(ctx *gin.Context) {
	adminID, _ := getUserID(ctx)
	predictionID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	pred, err := p.engine.ClosePrediction(ctx.Request.Context(), adminID, predictionID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, pred)
}
