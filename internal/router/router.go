package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/uteop23/askara-ai-app/internal/handlers"
	"github.com/uteop23/askara-ai-app/internal/middleware"
	"github.com/uteop23/askara-ai-app/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	videoHandler *handlers.VideoHandler,
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

	// Submission rate limiter (10 req/min per IP); polling is unlimited
	submitLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Rendered clips are public once the filename is known
	r.Get("/clips/{filename}", videoHandler.ServeClip)

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/videos", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Group(func(r chi.Router) {
				r.Use(submitLimiter.Middleware)
				r.Post("/process", videoHandler.ProcessVideo)
			})

			r.Get("/task-status/{taskID}", videoHandler.TaskStatus)
			r.Get("/history", videoHandler.History)
		})

		// WebSocket progress stream
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
