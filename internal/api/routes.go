package api

import (
	"log/slog"
	"net/http"
	"time"

	"file.share/config"
	"file.share/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(svc Services, cfg *config.Config, log *slog.Logger) *chi.Mux {
	h := NewHandler(svc, cfg, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(CORS(CORSConfig{
		AllowedOrigins: []string{cfg.Server.BaseURL},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Password"},
		MaxAge:         86400,
	}))

	if cfg.RateLimit.Enabled {
		r.Use(NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute).Middleware)
	}

	// Routes that check the operator password get a tighter limit.
	auth := chi.Chain(FormOnly)
	if cfg.RateLimit.Enabled {
		auth = chi.Chain(NewRateLimiter(cfg.RateLimit.AuthPerMin, time.Minute).Middleware, FormOnly)
	}

	// Health
	r.Get("/health", h.Health)

	// Uploads and downloads stream for as long as the server timeouts allow.
	r.With(auth...).Post("/upload", h.Upload)
	r.Get("/download/{token}", h.Download)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/setup", h.SetupStatus)
		r.With(auth...).Post("/setup", h.Setup)
		r.With(auth...).Post("/change-password", h.ChangePassword)

		r.Get("/files", h.ListFiles)
		r.With(auth...).Delete("/files/{token}", h.DeleteFile)
	})

	// Frontend
	r.Get("/", h.Index)
	r.Get("/upload", h.UploadPage)
	r.Get("/change-password", h.ChangePasswordPage)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))

	return r
}
