package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nexlook/internal/http/handlers"
	"nexlook/internal/infra"
	"nexlook/internal/middleware"
)

type RouterConfig struct {
	JWTSecret       string
	DefaultLocale   string
	CORSOrigins     []string
	RateLimitPerMin int
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *infra.Logger
}

func NewRouter(app *handlers.App, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(*infra.LoggerOrDiscard(cfg.Logger)),
		chimw.Recoverer,
		middleware.CORS(cfg.CORSOrigins),
		middleware.I18N(cfg.DefaultLocale),
	)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/recommendations", func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Post("/text", app.FreeTextRecommendation)
		r.Post("/look", app.LookRecommendation)
	})

	return r
}
