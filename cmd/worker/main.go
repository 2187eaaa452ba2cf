// Command worker runs the asynchronous ingestion pipeline: a WorkerPool
// draining the JobQueue, invoking the same router/executor cascade as the
// synchronous path and persisting through BlobStore/EmbedStore, grounded on
// the teacher's cmd/main.go bootstrap and StartPingLoop/Shutdown pattern.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/visioncap/visioncap/breaker"
	"github.com/visioncap/visioncap/config"
	"github.com/visioncap/visioncap/executor"
	"github.com/visioncap/visioncap/jobqueue"
	"github.com/visioncap/visioncap/modelhost"
	"github.com/visioncap/visioncap/ratelimit"
	"github.com/visioncap/visioncap/router"
	"github.com/visioncap/visioncap/semcache"
	"github.com/visioncap/visioncap/state"
	"github.com/visioncap/visioncap/store"
	"github.com/visioncap/visioncap/telemetry"
	"github.com/visioncap/visioncap/utils"
	"github.com/visioncap/visioncap/workerpool"
)

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
	if cfg.ValkeyEndpoint == "" {
		sugar.Fatal("VALKEY_ENDPOINT is required to run the async worker")
	}

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

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.ValkeyEndpoint}})
	if err != nil {
		sugar.Fatalw("failed to create valkey client", "error", err)
	}
	defer valkeyClient.Close()

	stateManager := state.NewValkeyManager(valkeyClient)
	rec := telemetry.New("visioncap/worker")

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

	queue := jobqueue.New(valkeyClient)
	pool := workerpool.New(queue, r, exec, embedHost, blobStore, embedStore, cfg.WorkerConcurrency, sugar, rec)

	sugar.Infow("starting worker pool", "concurrency", pool.Concurrency)
	pool.Start(ctx)

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)
	<-shutdownSignal

	sugar.Infow("shutting down worker pool")
	cancel()
	pool.Shutdown()
	sugar.Infow("worker exited gracefully")
}
