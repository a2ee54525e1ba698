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

	"studyhub-backend/internal/config"
	"studyhub-backend/internal/database"
	"studyhub-backend/internal/handlers"
	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/repository"
	"studyhub-backend/internal/router"
	"studyhub-backend/internal/services"
	"studyhub-backend/internal/session"
	"studyhub-backend/internal/websocket"
	"studyhub-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting StudyHub Backend...")

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

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	noteRepo := repository.NewNoteRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)
	goalRepo := repository.NewGoalRepo(pool)
	todoRepo := repository.NewTodoRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	aiService, err := services.NewAIService(
		cfg.GeminiAPIKey,
		cfg.GeminiConcurrentReqs,
		noteRepo,
		quizRepo,
		flashcardRepo,
		jobRepo,
		redisClients.Queue,
	)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer aiService.Close()
	log.Println("✓ Gemini Flash client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	youtubeService := services.NewYouTubeService()
	fileExtractService := services.NewFileExtractService()
	authService := services.NewAuthService(userRepo, redisClients.Queue, jwtAuth, emailService, cfg.GoogleClientID)
	notifier := services.NewRedisNotifier(redisClients.Queue)

	// ──── Initialize Handlers ────
	dashboardHandler := handlers.NewDashboardHandler(pool, sessionRepo, redisClients.Queue)

	// ──── Step 6: Start Session Manager ────
	sessionCfg := session.Config{
		MaxSessionDuration: cfg.SessionMaxDuration,
		InactivityTimeout:  cfg.SessionInactivityTimeout,
		IdleWarningTime:    cfg.SessionIdleWarningTime,
		AutoPauseGrace:     cfg.SessionAutoPauseGrace,
		FlushInterval:      cfg.SessionFlushInterval,
		TickInterval:       session.DefaultTickInterval,
	}
	sessionManager := session.NewManager(sessionCfg, nil, sessionRepo, notifier, dashboardHandler.InvalidateStats)
	log.Println("✓ Session manager started")

	authHandler := handlers.NewAuthHandler(authService, cfg.FrontendURL)
	sessionHandler := handlers.NewSessionHandler(sessionManager, sessionRepo)
	noteHandler := handlers.NewNoteHandler(noteRepo, jobRepo, aiService, fileExtractService, redisClients.Queue, cfg.StoragePath)
	quizHandler := handlers.NewQuizHandler(quizRepo, noteRepo, jobRepo, redisClients.Queue)
	flashcardHandler := handlers.NewFlashcardHandler(flashcardRepo, noteRepo, jobRepo, redisClients.Queue)
	goalHandler := handlers.NewGoalHandler(goalRepo)
	todoHandler := handlers.NewTodoHandler(todoRepo)
	libraryHandler := handlers.NewLibraryHandler(pool)
	userHandler := handlers.NewUserHandler(userRepo)
	jobHandler := handlers.NewJobHandler(jobRepo)
	adminHandler := handlers.NewAdminHandler(pool, userRepo)

	// ──── Step 7: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		aiService,
		emailService,
		userRepo,
		youtubeService,
		jobRepo,
		noteRepo,
		quizRepo,
		flashcardRepo,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	reminderScheduler := services.NewReminderScheduler(userRepo, todoRepo, emailService, notifier)
	reminderScheduler.Start()
	log.Println("✓ Reminder scheduler started")

	// ──── Step 8: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 9: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		sessionHandler,
		noteHandler,
		quizHandler,
		flashcardHandler,
		goalHandler,
		todoHandler,
		dashboardHandler,
		libraryHandler,
		userHandler,
		jobHandler,
		adminHandler,
		wsHub,
		cfg.FrontendURL,
	)

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
		reminderScheduler.Stop()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Persist open study sessions before the process exits.
		sessionManager.Shutdown(ctx)
		server.Shutdown(ctx)
	}()

	log.Printf("✓ StudyHub Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
