package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/pointsplay/ai"
	"github.com/cppla/pointsplay/config"
	"github.com/cppla/pointsplay/events"
	"github.com/cppla/pointsplay/models"
	"github.com/cppla/pointsplay/routes"
	"github.com/cppla/pointsplay/services"
	"github.com/cppla/pointsplay/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	db := config.InitDatabase(models.All()...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(utils.Logger.Named("events"))
	opts := []services.Option{services.WithLogger(utils.Logger.Named("engine"))}

	// With Redis every node publishes to the shared channel and relays it to local sockets
	if rdb := utils.GetRedis(); rdb != nil {
		opts = append(opts, services.WithPublisher(events.NewRedisPublisher(rdb, cfg.EventsChannel)))
		go events.Relay(ctx, rdb, cfg.EventsChannel, hub, utils.Logger.Named("relay"))
	} else {
		opts = append(opts, services.WithPublisher(hub))
	}

	if cfg.GeminiAPIKey != "" {
		opts = append(opts, services.WithSuggester(
			ai.NewGeminiSuggester(cfg.GeminiAPIKey, cfg.GeminiModel, utils.Logger.Named("ai"))))
	} else {
		utils.Logger.Info("GEMINI_API_KEY not set, bonus suggestions disabled")
	}

	engine := services.NewEngine(db, cfg.SettlementSettings(), opts...)

	utils.StartBlacklistSweeper(ctx, 5*time.Minute)

	r := routes.SetupRouter(cfg, engine, hub)

	srv := utils.NewServer(":"+cfg.AppPort, r)
	srv.OnShutdown(cancel)
	srv.OnShutdown(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	utils.Logger.Info("starting server", zap.String("port", cfg.AppPort), zap.String("db_driver", cfg.DBDriver))
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
