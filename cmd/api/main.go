package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaymind/voicegate/internal/api/router"
	"github.com/relaymind/voicegate/internal/app/bootstrap"
	"github.com/relaymind/voicegate/internal/bridge"
	"github.com/relaymind/voicegate/internal/calls"
	"github.com/relaymind/voicegate/internal/compliance"
	appconfig "github.com/relaymind/voicegate/internal/config"
	"github.com/relaymind/voicegate/internal/http/handlers"
	observemetrics "github.com/relaymind/voicegate/internal/observability/metrics"
	"github.com/relaymind/voicegate/internal/telnyx"
	"github.com/relaymind/voicegate/internal/tenant"
	"github.com/relaymind/voicegate/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voicegate API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// The audit trail uses database/sql; it shares the connection string but
	// not the pool, so a slow audit write cannot starve the hot path.
	auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open audit db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = auditDB.Close() }()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	verifier, err := telnyx.NewVerifier(telnyx.VerifierConfig{
		PublicKey:     cfg.TelnyxPublicKey,
		MaxSkew:       cfg.TelnyxSignatureMaxSkew,
		AllowUnsigned: !cfg.IsProduction(),
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to build webhook verifier", "error", err)
		os.Exit(1)
	}

	voiceMetrics := observemetrics.NewVoiceMetrics(nil)
	resolver := tenant.NewResolver(pool, logger)
	reconciler := calls.NewReconciler(calls.NewStore(pool), resolver, logger)
	audit := compliance.NewRecorder(auditDB, logger)

	var dispatcher *bridge.Dispatcher
	if cfg.TelnyxAPIKey != "" {
		client, err := telnyx.NewClient(telnyx.ClientConfig{
			BaseURL:    cfg.TelnyxBaseURL,
			APIKey:     cfg.TelnyxAPIKey,
			Timeout:    cfg.TelnyxRequestTimeout,
			MaxRetries: cfg.TelnyxRetryMaxAttempts,
			Backoff:    cfg.TelnyxRetryBaseDelay,
			Logger:     logger.Logger,
		})
		if err != nil {
			logger.Error("failed to build call control client", "error", err)
			os.Exit(1)
		}
		guard := bootstrap.BuildClaimGuard(redisClient, cfg.BridgeClaimTTL, logger)
		orchestrator := bridge.NewOrchestrator(client, resolver, guard, voiceMetrics, logger, bridge.OrchestratorConfig{
			AgentSIPDomain:  cfg.AgentSIPDomain,
			AnswerSettle:    cfg.BridgeAnswerSettle,
			HangupSettle:    cfg.BridgeHangupSettle,
			FallbackVoice:   cfg.FallbackVoice,
			FallbackLang:    cfg.FallbackLanguage,
			FallbackMessage: cfg.FallbackMessage,
			HoldMessage:     cfg.HoldMessage,
		})
		dispatcher = bridge.NewDispatcher(orchestrator, cfg.BridgeQueueCapacity, cfg.BridgeJobTimeout, logger)
	} else {
		if cfg.IsProduction() {
			logger.Error("TELNYX_API_KEY is required in production")
			os.Exit(1)
		}
		logger.Warn("no call control API key, inbound calls will not be bridged")
	}

	webhookCfg := handlers.VoiceWebhookConfig{
		Verifier:   verifier,
		Reconciler: reconciler,
		Audit:      audit,
		Metrics:    voiceMetrics,
		Logger:     logger,
	}
	if dispatcher != nil {
		webhookCfg.Dispatcher = dispatcher
	}
	voiceWebhook := handlers.NewVoiceWebhookHandler(webhookCfg)

	r := router.New(&router.Config{
		Logger:         logger,
		VoiceWebhook:   voiceWebhook,
		MetricsHandler: promhttp.Handler(),
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
	}
	// Stop intake and let in-flight bridge jobs finish so no answered call is
	// left without a terminal action.
	if dispatcher != nil {
		dispatcher.Close()
	}

	logger.Info("server stopped")
}
