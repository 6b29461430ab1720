package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uteop23/askara-ai-app/internal/config"
	"github.com/uteop23/askara-ai-app/internal/database"
	"github.com/uteop23/askara-ai-app/internal/handlers"
	"github.com/uteop23/askara-ai-app/internal/middleware"
	"github.com/uteop23/askara-ai-app/internal/repository"
	"github.com/uteop23/askara-ai-app/internal/router"
	"github.com/uteop23/askara-ai-app/internal/services"
	"github.com/uteop23/askara-ai-app/internal/websocket"
	"github.com/uteop23/askara-ai-app/internal/worker"
)

func main() {
	log.Println("🚀 Starting AskaraAI Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	if err := os.MkdirAll(cfg.ClipsDir, 0o755); err != nil {
		log.Fatalf("✗ Failed to create clips directory: %v", err)
	}

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	videoRepo := repository.NewVideoRepo(pool)
	clipRepo := repository.NewClipRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	analyzer, err := services.NewAnalyzer(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer analyzer.Close()
	log.Println("✓ Gemini Flash client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	guard := services.NewMemoryGuard(cfg.MemoryLimitMB)
	fetcher := services.NewFetcher(cfg.MaxVideoDuration, cfg.MaxVideoSizeBytes)
	transcripts := services.NewTranscriptService()
	renderer := services.NewRenderer(&services.ExecRunner{}, guard, cfg.ClipsDir)
	progress := services.NewRedisProgress(redisClients.PubSub)

	// ──── Step 6: Start Job Worker Pool ────
	pipeline := worker.NewPipeline(
		fetcher,
		transcripts,
		analyzer,
		renderer,
		guard,
		videoRepo,
		clipRepo,
		progress,
		cfg.ScratchDir,
	)
	workerPool := worker.NewPool(
		redisClients.Queue,
		pipeline,
		videoRepo,
		userRepo,
		emailService,
		progress,
		cfg.WorkerCount,
		cfg.MaxTasksPerWorker,
		cfg.SoftTimeLimit,
		cfg.HardTimeLimit,
		cfg.CreditCost,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	maintenance := services.NewMaintenanceScheduler(cfg.ClipsDir, cfg.ScratchDir, cfg.ClipRetentionDays)
	maintenance.Start()
	log.Println("✓ Maintenance scheduler started")

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	taskQueue := worker.NewQueue(redisClients.Queue)
	videoHandler := handlers.NewVideoHandler(videoRepo, clipRepo, userRepo, fetcher, taskQueue, cfg.ClipsDir, cfg.CreditCost)
	r := router.New(jwtAuth, videoHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		maintenance.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ AskaraAI Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
