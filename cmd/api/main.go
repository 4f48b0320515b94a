package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"nexlook/internal/adapter/cache"
	"nexlook/internal/adapter/repo"
	"nexlook/internal/http/handlers"
	httpapi "nexlook/internal/http/httpapi"
	"nexlook/internal/infra"
	"nexlook/internal/infra/credentials"
	"nexlook/internal/providers/llm"
	"nexlook/internal/recommend"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	sqlRunner := infra.NewSQLRunner(dbpool, logger)

	checks := map[string]handlers.HealthCheck{
		"database": dbpool.Ping,
	}

	var probeCache recommend.ProbeCache
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, image probes will not be cached")
		} else {
			defer rdb.Close()
			probeCache = cache.NewProbeCache(rdb, cfg.ProbeCacheTTL())
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := recommend.NewMetrics(reg)

	completer := llm.NewClient(llm.Options{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		Timeout:      cfg.LLMTimeout(),
		RetryBackoff: cfg.LLMRetryBackoff(),
		Credentials:  credentials.NewStore(sqlRunner),
		Logger:       &logger,
	})

	service := recommend.NewService(recommend.ServiceDeps{
		Store: repo.NewLookRepository(sqlRunner),
		Trust: recommend.NewTrustFilter(recommend.TrustOptions{
			Allowlist:    cfg.ImageSourceAllowlist,
			Probe:        cfg.ImageProbeEnabled,
			Concurrency:  cfg.ImageProbeConcurrency,
			ProbeTimeout: cfg.ImageProbeTimeout(),
			Cache:        probeCache,
			Logger:       &logger,
		}),
		Sanitizer: recommend.NewSanitizer(cfg.PromptDenylist, cfg.PromptMaxRunes),
		Builder:   recommend.NewBuilder(cfg.DefaultLocale),
		Completer: completer,
		Metrics:   metrics,
		Logger:    &logger,
	}, recommend.ServiceConfig{
		MaxItems:            cfg.WardrobeMaxItem,
		Model:               cfg.OpenAIModel,
		MaxTokens:           cfg.LLMMaxTokens,
		FreeTextTemperature: cfg.FreeTextTemperature,
		LookTemperature:     cfg.LookTemperature,
		LookPenalty:         cfg.LookPenalty,
	})

	app := handlers.NewApp(service, checks, &logger)
	router := httpapi.NewRouter(app, httpapi.RouterConfig{
		JWTSecret:       cfg.JWTSecret,
		DefaultLocale:   cfg.DefaultLocale,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Gatherer:        reg,
		Logger:          &logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Strs("image_hosts", cfg.ImageSourceAllowlist).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
