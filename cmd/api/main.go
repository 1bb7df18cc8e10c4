package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/convoleads/leadqual/internal/api/router"
	appconfig "github.com/convoleads/leadqual/internal/config"
	"github.com/convoleads/leadqual/internal/conversation"
	"github.com/convoleads/leadqual/internal/leads"
	"github.com/convoleads/leadqual/internal/observability/metrics"
	"github.com/convoleads/leadqual/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadqual API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Storage: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		leadsRepo  leads.Repository
		turnStore  conversation.TurnStore
		activities conversation.ActivityStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		leadsRepo = leads.NewPostgresRepository(pool)
		turnStore = conversation.NewPostgresTurnStore(pool)
		activities = conversation.NewPostgresActivityStore(pool)
		logger.Info("using postgres storage")
	} else {
		leadsRepo = leads.NewInMemoryRepository()
		turnStore = conversation.NewMemoryTurnStore()
		activities = conversation.NewMemoryActivityStore()
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exchangeMetrics := metrics.NewExchangeMetrics(registry)

	// Resolver: model-backed when an OpenAI key is present, rule-based
	// otherwise. The model path always fails open to the rules.
	ruleResolver := conversation.NewRuleBasedResolver()
	var resolver conversation.Resolver = ruleResolver
	if cfg.ModelEnabled() {
		var client conversation.LLMClient = conversation.NewOpenAIClient(cfg.OpenAIAPIKey)
		if cfg.BedrockModelID != "" {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
			if err != nil {
				logger.Error("failed to load AWS config", "error", err)
				os.Exit(1)
			}
			bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
			client = conversation.NewFallbackLLMClient(client, bedrock, logger).
				WithFallbackModel(cfg.BedrockModelID)
			logger.Info("bedrock fallback enabled", "model", cfg.BedrockModelID)
		}
		modelResolver := conversation.NewModelResolver(client, cfg.OpenAIModel, cfg.LLMTimeout, int32(cfg.LLMMaxTokens), logger)
		resolver = conversation.NewFailOpenResolver(modelResolver, ruleResolver, logger).
			OnFallback(exchangeMetrics.ObserveModelFallback)
		logger.Info("model-backed responder enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Info("OPENAI_API_KEY not set, using rule-based responder")
	}

	// Orchestrator
	orchestratorOpts := []conversation.OrchestratorOption{
		conversation.WithMetrics(exchangeMetrics),
	}
	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, history cache disabled", "error", err)
		} else {
			cache := conversation.NewHistoryCache(redisClient, cfg.HistoryTTL, 0)
			orchestratorOpts = append(orchestratorOpts, conversation.WithHistoryCache(cache))
			logger.Info("history cache enabled", "addr", cfg.RedisAddr)
		}
	}
	orchestrator := conversation.NewOrchestrator(leadsRepo, turnStore, activities, resolver, logger, orchestratorOpts...)

	// Initialize handlers
	conversationHandler := conversation.NewHandler(orchestrator, logger)
	leadsHandler := leads.NewHandler(leadsRepo, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		LeadsHandler:        leadsHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
