package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

const accuracyCacheKey = "stats:question-accuracy"

// StatsController provides platform statistics and question accuracy reports.
type StatsController struct {
	engine *services.Engine
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(engine *services.Engine) *StatsController {
	return &StatsController{engine: engine}
}

// GetStats returns aggregate statistics.
func (s *StatsController) GetStats(ctx *gin.Context) {
	stats, err := s.engine.Stats(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, stats)
}

// QuestionAccuracy reports display and correct counts per question. The report is cached
// briefly in Redis when available.
func (s *StatsController) QuestionAccuracy(ctx *gin.Context) {
	var cached []services.QuestionStats
	if utils.CacheGetJSON(ctx.Request.Context(), accuracyCacheKey, &cached) {
		utils.Success(ctx, cached)
		return
	}
	report, err := s.engine.QuestionAccuracy(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), accuracyCacheKey, report, 30*time.Second)
	utils.Success(ctx, report)
}
