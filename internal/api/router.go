package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sitelens/internal/middleware"
)

// RouterConfig holds the middleware settings for the HTTP router.
type RouterConfig struct {
	JWTSecret      []byte
	AllowedOrigins []string
	RateLimit      middleware.RateLimitConfig
}

// NewRouter assembles the chi router: request ids, CORS, and rate limiting
// on everything; identity auth on the /api/v1 routes. /healthz stays public.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Identity", "X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimiter(cfg.RateLimit))
	}

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWTSecret))
		r.Get("/dashboard", h.Dashboard)
		r.Get("/charts", h.Charts)
		r.Get("/charts/{chartID}/sql", h.ChartSQL)
		r.Get("/history", h.History)
	})

	return r
}
