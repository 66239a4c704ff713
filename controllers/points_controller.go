package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

// PointsController exposes the ledger and admin adjustments.
type PointsController struct {
	engine *services.Engine
}

// NewPointsController creates a new controller instance.
func NewPointsController(engine *services.Engine) *PointsController {
	return &PointsController{engine: engine}
}

// Transactions lists the caller's ledger, newest first.
func (p *PointsController) Transactions(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
		return
	}
	limit, offset := pageParams(ctx)
	items, total, err := p.engine.Transactions(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(ctx, err)
		return
	}
	balance, err := p.engine.Balance(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"balance": balance,
		"page":    utils.Page{Items: items, Total: total, Limit: limit, Offset: offset},
	})
}

// Grant credits or debits a user (admin).
func (p *PointsController) Grant(ctx *gin.Context) {
	adminID, _ := getUserID(ctx)
	var req struct {
		UserID uint   `json:"user_id" binding:"required"`
		Amount int64  `json:"amount" binding:"required"`
		Notes  string `json:"notes"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	rec, err := p.engine.GrantPoints(ctx.Request.Context(), adminID, req.UserID, req.Amount, utils.SanitizeText(req.Notes))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, rec)
}

// VerifyLedger compares a user's balance with the sum of their ledger (admin).
func (p *PointsController) VerifyLedger(ctx *gin.Context) {
	userID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	report, err := p.engine.VerifyLedger(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, report)
}

// SetRole changes a user's role (admin).
func (p *PointsController) SetRole(ctx *gin.Context) {
	adminID, _ := getUserID(ctx)
	userID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if !bindJSON(ctx, &req) {
		return
	}
	user, err := p.engine.SetRole(ctx.Request.Context(), adminID, userID, req.Role)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}
