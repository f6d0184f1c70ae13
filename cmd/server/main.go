// Package main is the llm-gateway server entry point: loads configuration, constructs the
// backend clients, conversation store, and breaker registry, and serves the gateway's HTTP
// surface until an interrupt or termination signal requests a graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/zap"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Laisky/llm-gateway/internal/backend"
	"github.com/Laisky/llm-gateway/internal/backend/azure"
	"github.com/Laisky/llm-gateway/internal/backend/bedrock"
	"github.com/Laisky/llm-gateway/internal/config"
	"github.com/Laisky/llm-gateway/internal/convstore"
	"github.com/Laisky/llm-gateway/internal/gatewayhttp"
	"github.com/Laisky/llm-gateway/internal/logging"
	"github.com/Laisky/llm-gateway/internal/metrics"
	"github.com/Laisky/llm-gateway/internal/modelrouter"
	"github.com/Laisky/llm-gateway/internal/resilience"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %+v\n", err)
		os.Exit(1)
	}
	logging.Init(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	cfg, err := config.Load(os.Getenv("LLM_GATEWAY_DOTENV"))
	if err != nil {
		return err
	}

	available := make(map[backend.Provider]bool)

	var azureClient backend.Client
	if cfg.Azure.Validate("azure") == nil {
		c, err := azure.New(cfg.Azure)
		if err != nil {
			return err
		}
		azureClient = c
		available[backend.ProviderAzure] = true
	} else {
		logger.Warn("azure backend not configured, requests routed to it will fail validation")
	}

	var bedrockClient backend.Client
	if cfg.Bedrock.Model != "" {
		c, err := bedrock.New(ctx, cfg.Bedrock)
		if err != nil {
			return err
		}
		bedrockClient = c
		available[backend.ProviderBedrock] = true
	} else {
		logger.Warn("bedrock backend not configured, requests routed to it will fail validation")
	}

	convStore := convstore.New(convstore.Config{
		MaxAge:                 cfg.ConversationMaxAge,
		CleanupInterval:        cfg.ConversationCleanupEvery,
		MaxStoredConversations: cfg.MaxStoredConversations,
	})
	defer convStore.Close()

	router := modelrouter.New(modelrouter.Config{
		Entries:         cfg.ModelRoutes,
		DefaultProvider: backend.ProviderAzure,
		DefaultModel:    cfg.Azure.Model,
	}, available)

	breakers := resilience.NewRegistry(resilience.BreakerConfig{
		FailureThreshold: uint32(cfg.CircuitBreakerThreshold),
		RecoveryTimeout:  cfg.CircuitBreakerRecoveryTime,
	})

	retryCfg := map[backend.Provider]resilience.RetryConfig{
		backend.ProviderAzure:   {MaxAttempts: cfg.Azure.MaxRetries, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, Timeout: cfg.Azure.Timeout},
		backend.ProviderBedrock: {MaxAttempts: cfg.Bedrock.MaxRetries, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, Timeout: cfg.Bedrock.Timeout},
	}

	handler := gatewayhttp.New(gatewayhttp.Deps{
		Router:                    router,
		ConvStore:                 convStore,
		Breakers:                  breakers,
		RetryCfg:                  retryCfg,
		Azure:                     azureClient,
		Bedrock:                   bedrockClient,
		ContentSecurityValidation: cfg.ContentSecurityValidation,
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	handler.RegisterRoutes(engine)
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	go collectConversationStoreSize(ctx, convStore)

	srv := &http.Server{
		Addr:    listenAddr(),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if azureClient != nil {
		_ = azureClient.Shutdown(shutdownCtx)
	}
	if bedrockClient != nil {
		_ = bedrockClient.Shutdown(shutdownCtx)
	}
	return nil
}

// collectConversationStoreSize periodically reports the store's current entry count so
// /metrics reflects conversation-tracking pressure without the hot path paying for it.
func collectConversationStoreSize(ctx context.Context, store *convstore.Store) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ConversationStoreSize.Set(float64(store.Len()))
		}
	}
}

func listenAddr() string {
	if addr := os.Getenv("LLM_GATEWAY_LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}
