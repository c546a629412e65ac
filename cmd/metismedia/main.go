// Command metismedia runs the orchestrator's HTTP health surface and its
// bus worker pool side by side in one process.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/config"
	"github.com/metismedia/metismedia/pkg/database"
	"github.com/metismedia/metismedia/pkg/ledger"
	"github.com/metismedia/metismedia/pkg/providers"
	"github.com/metismedia/metismedia/pkg/repo"
	"github.com/metismedia/metismedia/pkg/stages"
	"github.com/metismedia/metismedia/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Printf("Starting %s", version.Full())
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	stats := cfg.Stats()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Bus.RedisAddr,
		Password: cfg.Bus.RedisPassword,
		DB:       cfg.Bus.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("connected to Redis")

	publisher := bus.NewPublisher(redisClient, cfg.Bus.StreamMain, cfg.Bus.StreamDLQ)
	runRepo := repo.NewRunRepo(dbClient.DB())
	costLedger := ledger.NewSlogSink(nil)

	handlers := stages.NewHandlers(stages.Env{
		DB:         dbClient.DB(),
		Publisher:  publisher,
		Embeddings: providers.NewMockEmbeddingProvider(providers.DefaultEmbeddingDims),
		Pulses:     providers.NewMockPulseProvider(nil),
		Thresholds: *cfg.Thresholds,
		Defaults:   *cfg.Defaults,
	})

	podID := getEnv("POD_ID", "metismedia")
	shutdownTimeout, err := time.ParseDuration(cfg.Worker.GracefulShutdownTimeout)
	if err != nil {
		shutdownTimeout = 30 * time.Second
	}

	registry := stages.WrapRegistryWithNodeTimeouts(handlers.Registry(), cfg.Budget.MaxNodeSeconds)
	pool := bus.NewPool(redisClient, publisher, runRepo, podID, cfg.Worker.WorkerCount, registry, shutdownTimeout, bus.WorkerOptions{
		Stream:        cfg.Bus.StreamMain,
		GroupName:     cfg.Bus.GroupName,
		BlockMS:       cfg.Bus.BlockMS,
		Count:         int64(cfg.Bus.Count),
		MaxRetries:    cfg.Bus.MaxRetries,
		IdemTTL:       time.Duration(cfg.Bus.IdemTTLSeconds) * time.Second,
		BackoffBase:   cfg.Bus.BackoffBaseSeconds,
		BackoffJitter: cfg.Bus.BackoffJitterMax,
		Budget:        &ledger.Budget{MaxDollars: cfg.Budget.MaxDollars, MaxProviderCalls: cfg.Budget.MaxProviderCalls, MaxNodeSeconds: cfg.Budget.MaxNodeSeconds},
		Ledger:        costLedger,
	})
	pool.Start(ctx)
	defer pool.Stop()
	log.Printf("bus worker pool started: %d workers", cfg.Worker.WorkerCount)

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(reqCtx, dbClient.DB())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbHealth,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"version":  version.Full(),
			"database": dbHealth,
			"configuration": gin.H{
				"worker_count":  stats.WorkerCount,
				"max_retries":   stats.MaxRetries,
				"max_dollars":   stats.MaxDollars,
				"tau_pre":       stats.TauPre,
				"desired_count": stats.DesiredCount,
			},
		})
	})

	server := &http.Server{Addr: ":" + httpPort, Handler: router}
	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
}
