package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/field-conditions/internal/api/http"
	"github.com/i474232898/field-conditions/internal/conditions"
	"github.com/i474232898/field-conditions/internal/conditions/providers"
	"github.com/i474232898/field-conditions/internal/config"
	"github.com/i474232898/field-conditions/internal/logging"
	"github.com/i474232898/field-conditions/internal/scheduler"
	"github.com/i474232898/field-conditions/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (backoff + circuit breaker). The imagery
	// session is initialized on the first vegetation fetch.
	weatherProv := providers.NewOpenMeteoProvider(httpClient, cfg.WeatherBaseURL, cfg.Backoff())
	tokens, err := providers.NewTokenSource(context.Background(), cfg.EarthEngineToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve imagery credentials")
	}
	session := providers.NewSession(httpClient, cfg.EarthEngineURL, cfg.EarthEngineProject, tokens)
	vegetationProv := providers.NewEarthEngineProvider(httpClient, session, cfg.EarthEngine())

	pipeline := conditions.NewPipeline(weatherProv, vegetationProv, conditions.Options{
		WeatherTimeout:    cfg.WeatherTimeout,
		VegetationTimeout: cfg.VegetationTimeout,
		Concurrent:        cfg.ConcurrentFetch,
	})

	// Provider health history with configured retention.
	statusStore := store.NewMemoryStore(cfg.HealthMaxHistory, cfg.HealthMaxAge)

	sched := scheduler.New([]conditions.HealthReporter{weatherProv, vegetationProv}, cfg.HealthInterval, statusStore)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "field-conditions",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Long enough for both provider fetches plus their retries.
		WriteTimeout: cfg.WeatherTimeout + cfg.VegetationTimeout + 10*time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(httpapi.RequestLogger())
	app.Use(recover.New())

	httpapi.RegisterMetrics(app)
	httpapi.RegisterRoutes(app, pipeline, statusStore)

	go func() {
		log.Info().Str("port", cfg.Port).Bool("concurrent_fetch", cfg.ConcurrentFetch).Msg("starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
