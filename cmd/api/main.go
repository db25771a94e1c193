package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hostwise/whatsapp-concierge/internal/activity"
	"github.com/hostwise/whatsapp-concierge/internal/ai"
	"github.com/hostwise/whatsapp-concierge/internal/api/router"
	appconfig "github.com/hostwise/whatsapp-concierge/internal/config"
	"github.com/hostwise/whatsapp-concierge/internal/http/handlers"
	"github.com/hostwise/whatsapp-concierge/internal/inbound"
	"github.com/hostwise/whatsapp-concierge/internal/observability/metrics"
	"github.com/hostwise/whatsapp-concierge/internal/store"
	"github.com/hostwise/whatsapp-concierge/internal/whatsapp"
	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	db := store.NewStore(pool)

	redisClient := newRedisClient(ctx, cfg, logger)
	feed := activity.NewRecorder(redisClient, cfg.ActivityLogSize, logger)

	if cfg.GeminiAPIKey == "" {
		logger.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}
	llm, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		logger.Error("failed to create Gemini client", "error", err)
		os.Exit(1)
	}
	defer llm.Close()
	drafter := ai.NewDrafter(llm, db, cfg.GeminiModelID, cfg.AIHistoryLimit, cfg.AIDraftTimeout, logger)

	messenger := whatsapp.NewClient(cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIVersion, cfg.SendTimeout, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	processor := inbound.NewProcessor(db, drafter, messenger, feed, pipelineMetrics, cfg.AutoSendConfidenceFloor, logger)

	webhookHandler := handlers.NewWhatsAppWebhookHandler(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, processor, logger)
	setupHandler := handlers.NewAdminSetupHandler(db, logger)
	conversationsHandler := handlers.NewAdminConversationsHandler(db, drafter, messenger, feed, logger)

	r := router.New(&router.Config{
		Logger:               logger,
		WebhookHandler:       webhookHandler,
		SetupHandler:         setupHandler,
		ConversationsHandler: conversationsHandler,
		AdminAuthSecret:      cfg.AdminJWTSecret,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newRedisClient connects the activity feed backend. The feed is optional, so
// an unreachable Redis downgrades to a nil client instead of aborting startup.
func newRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available, activity feed disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
