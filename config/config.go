// Package config loads the service's configuration envelope from a YAML
// file (optionally fetched over HTTP) with environment variables taking
// precedence, adapted from the teacher's remote/local config loader.
package config

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/visioncap/visioncap/utils/env"
)

// Config is the full set of tunables named in §6's config envelope.
type Config struct {
	Port int `yaml:"port"`

	ValkeyEndpoint string `yaml:"valkey_endpoint"`

	CaptionLatencyBudgetMs int `yaml:"caption_latency_budget_ms"`

	CloudProvider              string  `yaml:"cloud_provider"`
	CloudMaxRequestsPerMinute  int     `yaml:"cloud_max_requests_per_minute"`
	CloudMaxRequestsPerDay     int     `yaml:"cloud_max_requests_per_day"`
	CloudDailyBudgetUsd        float64 `yaml:"cloud_daily_budget_usd"`
	CloudCircuitBreakerThreshold      int `yaml:"cloud_circuit_breaker_threshold"`
	CloudCircuitBreakerTimeoutSeconds int `yaml:"cloud_circuit_breaker_timeout_seconds"`

	CacheTtlSeconds int `yaml:"cache_ttl_seconds"`

	WorkerConcurrency int `yaml:"worker_concurrency"`

	HybridTextBoost  bool    `yaml:"hybrid_text_boost"`
	HybridTextWeight float64 `yaml:"hybrid_text_weight"`

	JwtSecret string `yaml:"-"`
	AdminSeed string `yaml:"-"`

	LocalModelHostUrl string `yaml:"local_model_host_url"`
	LocalModelName    string `yaml:"local_model_name"`
	CloudApiKey       string `yaml:"-"`
	CloudModel        string `yaml:"cloud_model"`
	EmbedModel        string `yaml:"embed_model"`

	BlobStoreDir    string `yaml:"blob_store_dir"`
	PostgresDsn     string `yaml:"-"`

	OtelExporterEndpoint string `yaml:"otel_exporter_endpoint"`
}

// Load reads path (or a CONFIG_SOURCE override, local or remote) as YAML,
// then overrides every field from its corresponding environment variable.
func Load(path string, logger *zap.SugaredLogger) (*Config, error) {
	cfg := Config{
		Port:                              8080,
		CaptionLatencyBudgetMs:            600,
		CloudMaxRequestsPerMinute:         60,
		CloudMaxRequestsPerDay:            10000,
		CloudDailyBudgetUsd:               10.0,
		CloudCircuitBreakerThreshold:      5,
		CloudCircuitBreakerTimeoutSeconds: 60,
		CacheTtlSeconds:                   3600,
		WorkerConcurrency:                 4,
		HybridTextWeight:                  0.2,
		LocalModelName:                    "llava",
		CloudModel:                        "gemini-2.0-flash",
		EmbedModel:                        "text-embedding-004",
		BlobStoreDir:                      "./data/blobs",
	}

	configSource := env.OptionalStringVariable("CONFIG_SOURCE", path)
	if configSource != "" {
		configToken := env.OptionalStringVariable("CONFIG_TOKEN", "")
		data, err := loadConfigData(configSource, configToken, logger)
		if err != nil {
			return nil, fmt.Errorf("config: load config data: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	cfg.Port = env.OptionalIntVariable("PORT", cfg.Port)
	cfg.ValkeyEndpoint = env.OptionalStringVariable("VALKEY_ENDPOINT", cfg.ValkeyEndpoint)
	cfg.CaptionLatencyBudgetMs = env.OptionalIntVariable("CAPTION_LATENCY_BUDGET_MS", cfg.CaptionLatencyBudgetMs)
	cfg.CloudProvider = env.OptionalStringVariable("CLOUD_PROVIDER", cfg.CloudProvider)
	cfg.CloudMaxRequestsPerMinute = env.OptionalIntVariable("CLOUD_MAX_REQUESTS_PER_MINUTE", cfg.CloudMaxRequestsPerMinute)
	cfg.CloudMaxRequestsPerDay = env.OptionalIntVariable("CLOUD_MAX_REQUESTS_PER_DAY", cfg.CloudMaxRequestsPerDay)
	cfg.CloudDailyBudgetUsd = env.OptionalFloat64Variable("CLOUD_DAILY_BUDGET_USD", cfg.CloudDailyBudgetUsd)
	cfg.CloudCircuitBreakerThreshold = env.OptionalIntVariable("CLOUD_CIRCUIT_BREAKER_THRESHOLD", cfg.CloudCircuitBreakerThreshold)
	cfg.CloudCircuitBreakerTimeoutSeconds = env.OptionalIntVariable("CLOUD_CIRCUIT_BREAKER_TIMEOUT_SECONDS", cfg.CloudCircuitBreakerTimeoutSeconds)
	cfg.CacheTtlSeconds = env.OptionalIntVariable("CACHE_TTL_SECONDS", cfg.CacheTtlSeconds)
	cfg.WorkerConcurrency = env.OptionalIntVariable("WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.HybridTextBoost = env.OptionalBoolVariable("HYBRID_TEXT_BOOST", cfg.HybridTextBoost)
	cfg.HybridTextWeight = env.OptionalFloat64Variable("HYBRID_TEXT_WEIGHT", cfg.HybridTextWeight)
	cfg.JwtSecret = env.OptionalStringVariable("JWT_SECRET", cfg.JwtSecret)
	cfg.AdminSeed = env.OptionalStringVariable("ADMIN_SEED_SECRET", cfg.AdminSeed)
	cfg.LocalModelHostUrl = env.OptionalStringVariable("LOCAL_MODEL_HOST_URL", cfg.LocalModelHostUrl)
	cfg.LocalModelName = env.OptionalStringVariable("LOCAL_MODEL_NAME", cfg.LocalModelName)
	cfg.CloudApiKey = env.OptionalStringVariable("CLOUD_API_KEY", cfg.CloudApiKey)
	cfg.CloudModel = env.OptionalStringVariable("CLOUD_MODEL", cfg.CloudModel)
	cfg.EmbedModel = env.OptionalStringVariable("EMBED_MODEL", cfg.EmbedModel)
	cfg.BlobStoreDir = env.OptionalStringVariable("BLOB_STORE_DIR", cfg.BlobStoreDir)
	cfg.PostgresDsn = env.OptionalStringVariable("POSTGRES_DSN", cfg.PostgresDsn)
	cfg.OtelExporterEndpoint = env.OptionalStringVariable("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OtelExporterEndpoint)

	return &cfg, nil
}

func loadConfigData(source, token string, logger *zap.SugaredLogger) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if logger != nil {
			logger.Infow("fetching remote config", "url", source)
		}
		return fetchRemoteConfig(source, token)
	}

	if logger != nil {
		logger.Infow("loading local config", "path", source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func fetchRemoteConfig(url, token string) ([]byte, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch config: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
