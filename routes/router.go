package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/pointsplay/config"
	"github.com/cppla/pointsplay/controllers"
	"github.com/cppla/pointsplay/events"
	"github.com/cppla/pointsplay/middleware"
	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, engine *services.Engine, hub *events.Hub) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access logs go to their own rolling file
	gl := utils.NewFileLogger(cfg, cfg.GinPath)
	r.Use(utils.Ginzap(gl))
	r.Use(utils.RecoveryWithZap(gl))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(engine)
	checkInController := controllers.NewCheckInController(engine)
	predictionController := controllers.NewPredictionController(engine)
	pointsController := controllers.NewPointsController(engine)
	feedbackController := controllers.NewFeedbackController(engine)
	questionController := controllers.NewQuestionController(engine)
	statsController := controllers.NewStatsController(engine)
	eventsController := controllers.NewEventsController(hub, cfg.AllowedOrigins)

	api := r.Group("/api/v1")
	api.GET("/stats", statsController.GetStats)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	protected.GET("/checkin/today", checkInController.Today)
	protected.POST("/checkin", checkInController.Submit)
	protected.GET("/predictions", predictionController.ListActive)
	protected.GET("/predictions/mine", predictionController.MyGuesses)
	protected.POST("/predictions/:id/guess", predictionController.Guess)
	protected.GET("/points/transactions", pointsController.Transactions)
	protected.POST("/feedback", feedbackController.Submit)
	protected.GET("/events/ws", eventsController.Stream)

	staff := protected.Group("/staff")
	staff.Use(middleware.RequireRole(models.RoleStaff, models.RoleAdmin))
	staff.GET("/questions", questionController.List)
	staff.POST("/questions", questionController.Create)
	staff.PUT("/questions/:id", questionController.Update)
	staff.GET("/questions/accuracy", statsController.QuestionAccuracy)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.POST("/grants", pointsController.Grant)
	admin.GET("/feedback", feedbackController.List)
	admin.POST("/feedback/:id/approve", feedbackController.Approve)
	admin.POST("/feedback/:id/reject", feedbackController.Reject)
	admin.GET("/feedback/:id/suggestion", feedbackController.Suggestion)
	admin.POST("/predictions", predictionController.Create)
	admin.POST("/predictions/:id/close", predictionController.Close)
	admin.GET("/users/:id/ledger/verify", pointsController.VerifyLedger)
	admin.PUT("/users/:id/role", pointsController.SetRole)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "route not found")
	})

	return r
}
