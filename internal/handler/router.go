package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/auth"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

type Handlers struct {
	Tasks  *TaskHandler
	Stream *StreamHandler
	Auth   *AuthHandler
	Guard  *auth.Middleware
}

func NewRouter(h Handlers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.Auth.Login)
		r.Get("/callback", h.Auth.Callback)
		r.Get("/session", h.Auth.Session)
		r.Post("/logout", h.Auth.Logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.Guard.Require)
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.Tasks.Create)
			r.Get("/", h.Tasks.List)
			r.Get("/stream", h.Stream.Stream)
			r.Get("/{id}", h.Tasks.Get)
			r.Patch("/{id}", h.Tasks.Update)
			r.Delete("/{id}", h.Tasks.Delete)
		})
		r.Get("/stats", h.Tasks.Stats)
	})

	return r
}

// requestLogger is chi's middleware.Logger, but through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
