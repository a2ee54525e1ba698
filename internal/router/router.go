package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyhub-backend/internal/handlers"
	"studyhub-backend/internal/middleware"
	"studyhub-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	noteHandler *handlers.NoteHandler,
	quizHandler *handlers.QuizHandler,
	flashcardHandler *handlers.FlashcardHandler,
	goalHandler *handlers.GoalHandler,
	todoHandler *handlers.TodoHandler,
	dashboardHandler *handlers.DashboardHandler,
	libraryHandler *handlers.LibraryHandler,
	userHandler *handlers.UserHandler,
	jobHandler *handlers.JobHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/google", authHandler.GoogleLogin)
			r.Post("/refresh", authHandler.Refresh)
			r.Get("/verify-email", authHandler.VerifyEmail)
			r.Post("/resend-verification", authHandler.ResendVerification)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Study Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", sessionHandler.List)
			r.Post("/start", sessionHandler.Start)
			r.Get("/current", sessionHandler.Current)
			r.Post("/activity", sessionHandler.Activity)
			r.Post("/pause", sessionHandler.TogglePause)
			r.Post("/visibility", sessionHandler.Visibility)
			r.Post("/progress", sessionHandler.Progress)
			r.Post("/end", sessionHandler.End)
			r.Post("/beacon", sessionHandler.Beacon)
		})

		// ──── Note Routes ────
		r.Route("/notes", func(r chi.Router) {
			r.Get("/supported-formats", noteHandler.SupportedFormats) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/", noteHandler.Create)
				r.Get("/", noteHandler.List)
				r.Post("/transcribe-video", noteHandler.TranscribeVideo)
				r.Post("/upload", noteHandler.Upload)
				r.Post("/bulk-delete", noteHandler.BulkDelete)
				r.Get("/{id}", noteHandler.Get)
				r.Put("/{id}", noteHandler.Update)
				r.Delete("/{id}", noteHandler.Delete)
				r.Put("/{id}/favorite", noteHandler.ToggleFavorite)
				r.Post("/{id}/enrich", noteHandler.Enrich)
				r.Post("/{id}/chat", noteHandler.Chat)
			})
		})

		// ──── Quiz Routes ────
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/generate", quizHandler.Generate)
			r.Get("/", quizHandler.List)
			r.Get("/{id}", quizHandler.Get)
			r.Delete("/{id}", quizHandler.Delete)
			r.Post("/{id}/start", quizHandler.StartAttempt)
			r.Get("/{id}/attempts", quizHandler.ListAttempts)
		})

		r.Route("/quiz-attempts", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/{id}/save-progress", quizHandler.SaveProgress)
			r.Post("/{id}/submit", quizHandler.SubmitAttempt)
			r.Get("/{id}", quizHandler.GetAttempt)
		})

		// ──── Flashcard Routes ────
		r.Route("/flashcards", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/generate", flashcardHandler.Generate)
			r.Get("/due", flashcardHandler.DueCards)

			r.Route("/decks", func(r chi.Router) {
				r.Post("/", flashcardHandler.CreateDeck)
				r.Get("/", flashcardHandler.ListDecks)
				r.Get("/{id}", flashcardHandler.GetDeck)
				r.Get("/{id}/stats", flashcardHandler.GetDeckStats)
				r.Put("/{id}/favorite", flashcardHandler.ToggleFavorite)
				r.Delete("/{id}", flashcardHandler.DeleteDeck)
				r.Post("/{id}/cards", flashcardHandler.AddCard)
			})

			r.Route("/cards", func(r chi.Router) {
				r.Post("/{id}/rating", flashcardHandler.RateCard)
			})
		})

		// ──── Goal Routes ────
		r.Route("/goals", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", goalHandler.Create)
			r.Get("/", goalHandler.List)
			r.Put("/{id}", goalHandler.Update)
			r.Delete("/{id}", goalHandler.Delete)
		})

		// ──── Todo Routes ────
		r.Route("/todos", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", todoHandler.Create)
			r.Get("/", todoHandler.List)
			r.Put("/{id}", todoHandler.Update)
			r.Delete("/{id}", todoHandler.Delete)
		})

		// ──── Dashboard Routes ────
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/stats", dashboardHandler.Stats)
			r.Get("/categories", dashboardHandler.Categories)
			r.Get("/activity", dashboardHandler.Activity)
			r.Get("/streak", dashboardHandler.Streak)
			r.Get("/recent", dashboardHandler.Recent)
		})

		// ──── Library Routes ────
		r.Route("/library", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", libraryHandler.List)
		})

		// ──── User & Settings Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", userHandler.GetMe)
			r.Put("/me", userHandler.UpdateMe)
			r.Put("/password", userHandler.ChangePassword)
			r.Delete("/me", userHandler.DeleteMe)
			r.Get("/settings", userHandler.GetSettings)
			r.Put("/settings", userHandler.UpdateSettings)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.GetJob)
			r.Delete("/{id}", jobHandler.CancelJob)
		})

		// ──── Admin Routes ────
		r.Route("/admin", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/stats", adminHandler.Stats)
			r.Get("/active-sessions", adminHandler.ActiveSessions)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
