package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/hockey-sim/internal/api/handlers"
	"github.com/stitts-dev/hockey-sim/internal/cache"
	"github.com/stitts-dev/hockey-sim/internal/config"
	"github.com/stitts-dev/hockey-sim/internal/simulator"
	"github.com/stitts-dev/hockey-sim/internal/storage"
	"github.com/stitts-dev/hockey-sim/internal/websocket"
	"github.com/stitts-dev/hockey-sim/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(os.Getenv("HOCKEYSIM_CONFIG_PATH"))
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	isDevelopment := cfg.Environment == "development"
	structuredLogger := logger.InitLogger(cfg.LogLevel, isDevelopment)
	log := logger.WithService("simulation-service")
	log.WithFields(logrus.Fields{
		"version":     version,
		"environment": cfg.Environment,
		"port":        cfg.Server.Port,
	}).Info("Starting Simulation Service")

	if isDevelopment {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.Connect(cfg.Database.DSN(), log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Redis is optional: a dead cache degrades to recomputing profiles.
	var profileCache simulator.ProfileCache
	var cacheService *cache.ProfileCacheService
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("Redis unavailable, profile caching disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
			cacheService = cache.NewProfileCacheService(redisClient, structuredLogger, cfg.Redis.TTL)
			profileCache = cacheService
		}
	}

	wsHub := websocket.NewHub(structuredLogger)
	go wsHub.Run()

	builder := simulator.NewBuilder(store, profileCache, cfg.Simulation)
	engine := simulator.NewEngine(cfg.Simulation)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	simulationHandler := handlers.NewSimulationHandler(builder, engine, wsHub, cfg, structuredLogger)
	cacheHandler := handlers.NewCacheHandler(cacheService)
	healthHandler := handlers.NewHealthHandler(redisClient, version)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/simulations", simulationHandler.StartSimulation)
		apiV1.GET("/simulations/:run_id", simulationHandler.GetSimulation)
		apiV1.POST("/simulations/:run_id/cancel", simulationHandler.CancelSimulation)

		apiV1.POST("/cache/invalidate/:entity_id", cacheHandler.InvalidateEntity)
	}

	router.GET("/ws/simulation-progress/:run_id", wsHub.HandleWebSocket)

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("Simulation service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down simulation service")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	log.Info("Simulation service stopped")
}
