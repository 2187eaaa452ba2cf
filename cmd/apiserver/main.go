// Command apiserver runs the synchronous HTTP surface: ingestion, search,
// and image lifecycle routes, grounded on the teacher's cmd/main.go
// bootstrap (config load, state manager selection, signal-driven graceful
// shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/visioncap/visioncap/auth"
	"github.com/visioncap/visioncap/breaker"
	"github.com/visioncap/visioncap/config"
	"github.com/visioncap/visioncap/executor"
	"github.com/visioncap/visioncap/jobqueue"
	"github.com/visioncap/visioncap/modelhost"
	"github.com/visioncap/visioncap/ratelimit"
	"github.com/visioncap/visioncap/router"
	"github.com/visioncap/visioncap/search"
	"github.com/visioncap/visioncap/semcache"
	"github.com/visioncap/visioncap/server"
	"github.com/visioncap/visioncap/state"
	"github.com/visioncap/visioncap/store"
	"github.com/visioncap/visioncap/telemetry"
	"github.com/visioncap/visioncap/utils"
)

func setupStateManager(valkeyEndpoint string) (state.Manager, func(), error) {
	if valkeyEndpoint == "" {
		memoryManager, cleanup := state.NewMemoryManager(2 * 1024 * 1024 * 1024)
		return memoryManager, cleanup, nil
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{valkeyEndpoint},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create valkey client: %v", err)
	}
	return state.NewValkeyManager(valkeyClient), func() { valkeyClient.Close() }, nil
}

func setupBlobStore(ctx context.Context, cfg *config.Config) (store.BlobStore, error) {
	switch cfg.CloudProvider {
	case "s3":
		return store.NewS3BlobStore(ctx, "us-east-1", cfg.BlobStoreDir)
	default:
		return store.NewLocalBlobStore(cfg.BlobStoreDir)
	}
}

func setupEmbedStore(ctx context.Context, cfg *config.Config) (store.EmbedStore, error) {
	if cfg.PostgresDsn != "" {
		return store.NewPostgresEmbedStore(ctx, cfg.PostgresDsn)
	}
	return store.NewMemoryEmbedStore(), nil
}

func main() {
	logger := utils.Must(zap.NewProduction())
	defer logger.Sync()
	sugar := logger.Sugar()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, sugar)
	if err != nil {
		sugar.Fatalw("failed to load config", "error", err)
	}
	sugar.Infow("loaded config", "port", cfg.Port, "cloud_provider", cfg.CloudProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingShutdown, err := telemetry.SetupTracing(ctx, cfg.OtelExporterEndpoint)
	if err != nil {
		sugar.Fatalw("failed to setup tracing", "error", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			sugar.Warnw("tracing shutdown failed", "error", err)
		}
	}()

	stateManager, stateCleanup, err := setupStateManager(cfg.ValkeyEndpoint)
	if err != nil {
		sugar.Fatalw("failed to setup state manager", "error", err)
	}
	if stateCleanup != nil {
		defer stateCleanup()
	}

	rec := telemetry.New("visioncap/apiserver")

	cache := semcache.New(stateManager, time.Duration(cfg.CacheTtlSeconds)*time.Second, sugar)
	r := router.New(cache, sugar, rec)

	localHost := modelhost.NewLocal(cfg.LocalModelHostUrl, cfg.LocalModelName)
	useCloud := cfg.CloudApiKey != "" && cfg.CloudProvider != "mock"
	var cloudHost modelhost.Host
	if useCloud {
		cloudHost, err = modelhost.NewCloud(ctx, cfg.CloudApiKey, cfg.CloudModel, cfg.EmbedModel)
		if err != nil {
			sugar.Fatalw("failed to construct cloud model host", "error", err)
		}
	} else {
		sugar.Warn("no cloud api key configured or CLOUD_PROVIDER=mock, cloud tier uses the mock host")
		cloudHost = modelhost.NewMock()
	}

	limiter := ratelimit.New(ratelimit.Limits{
		MaxPerMinute: cfg.CloudMaxRequestsPerMinute,
		MaxPerDay:    cfg.CloudMaxRequestsPerDay,
		DailyBudget:  cfg.CloudDailyBudgetUsd,
	})
	cb := breaker.New(breaker.Config{
		FailureThreshold: cfg.CloudCircuitBreakerThreshold,
		Timeout:          time.Duration(cfg.CloudCircuitBreakerTimeoutSeconds) * time.Second,
		HalfOpenMaxCalls: 1,
	}, rec.BreakerStateGauge())

	exec := executor.New(localHost, cloudHost, limiter, cb, cache, sugar, rec)

	blobStore, err := setupBlobStore(ctx, cfg)
	if err != nil {
		sugar.Fatalw("failed to setup blob store", "error", err)
	}
	embedStore, err := setupEmbedStore(ctx, cfg)
	if err != nil {
		sugar.Fatalw("failed to setup embed store", "error", err)
	}

	embedHost := modelhost.Host(localHost)
	if useCloud {
		embedHost = cloudHost
	}
	planner := search.New(embedHost, embedStore, cfg.HybridTextWeight)

	var queue *jobqueue.Queue
	if cfg.ValkeyEndpoint != "" {
		valkeyClient, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.ValkeyEndpoint}})
		if err != nil {
			sugar.Fatalw("failed to create valkey client for job queue", "error", err)
		}
		defer valkeyClient.Close()
		queue = jobqueue.New(valkeyClient)
	}

	authManager := auth.New([]byte(cfg.JwtSecret), cfg.AdminSeed)

	srv := server.New(r, exec, embedHost, blobStore, embedStore, queue, planner, authManager, cfg.CaptionLatencyBudgetMs, sugar, rec)

	mux := http.NewServeMux()
	mux.Handle("/", srv.Mux())
	mux.Handle("/metrics", rec.Handler())

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	address := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: corsMiddleware.Handler(mux),
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownSignal
		sugar.Infow("shutting down apiserver")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugar.Fatalw("server forced to shutdown", "error", err)
		}
	}()

	sugar.Infow("starting apiserver", "address", address)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		sugar.Fatalw("failed to start apiserver", "error", err)
	}

	sugar.Infow("apiserver exited gracefully")
}
