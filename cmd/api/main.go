package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wavecare-ai/wavecare-voice/internal/api/router"
	"github.com/wavecare-ai/wavecare-voice/internal/appointments"
	"github.com/wavecare-ai/wavecare-voice/internal/calls"
	appconfig "github.com/wavecare-ai/wavecare-voice/internal/config"
	"github.com/wavecare-ai/wavecare-voice/internal/conversation"
	"github.com/wavecare-ai/wavecare-voice/internal/doctors"
	"github.com/wavecare-ai/wavecare-voice/internal/http/handlers"
	"github.com/wavecare-ai/wavecare-voice/internal/livefeed"
	"github.com/wavecare-ai/wavecare-voice/internal/observability/metrics"
	"github.com/wavecare-ai/wavecare-voice/internal/stats"
	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting wavecare-voice API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	// pgx pool for the hot paths, database/sql for read-only aggregates.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}

	statsDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open stats db handle", "error", err)
		os.Exit(1)
	}
	defer func() { _ = statsDB.Close() }()

	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, live view degraded", "error", err)
	}

	timezone, err := time.LoadLocation(cfg.PracticeTimezone)
	if err != nil {
		logger.Warn("invalid practice timezone, using UTC", "timezone", cfg.PracticeTimezone)
		timezone = time.UTC
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	voiceMetrics := metrics.NewVoiceMetrics(registry)

	llmClient, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		logger.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = llmClient.Close() }()
	gateway := conversation.NewGateway(llmClient, cfg.LLMTimeout, logger)

	callStore := calls.NewStore(pool, cfg.StaleCallThreshold)
	liveCache := calls.NewLiveCache(rdb)
	doctorRepo := doctors.NewRepository(pool)
	apptRepo := appointments.NewRepository(pool)
	statsRepo := stats.NewRepository(statsDB)

	feed := livefeed.NewHub(liveCache.Live, logger)

	orchestrator := conversation.NewOrchestrator(conversation.OrchestratorConfig{
		Store:         callStore,
		Directory:     doctorRepo,
		Appointments:  apptRepo,
		Gateway:       gateway,
		Live:          liveCache,
		Feed:          feed,
		Metrics:       voiceMetrics,
		Logger:        logger,
		PracticeName:  cfg.PracticeName,
		Timezone:      timezone,
		SpeechTimeout: cfg.SpeechTimeout,
	})

	voiceWebhook := handlers.NewTwilioVoiceHandler(
		orchestrator, voiceMetrics, logger,
		cfg.TwilioWebhookSecret, cfg.PublicBaseURL,
	)
	authHandler := handlers.NewAuthHandler(cfg.AdminJWTSecret, cfg.AdminUsername, cfg.AdminPasswordHash, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		VoiceWebhook:        voiceWebhook,
		AuthHandler:         authHandler,
		CallsHandler:        calls.NewHandler(callStore, logger),
		DoctorsHandler:      doctors.NewHandler(doctorRepo, logger),
		AppointmentsHandler: appointments.NewHandler(apptRepo, logger),
		StatsHandler:        stats.NewHandler(statsRepo, logger),
		LiveFeed:            feed,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
