// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable that overrides the
// default config-file search path.
const ConfigPathEnvVar = "GORGONE_CONFIG_PATH"

// DefaultConfigPaths are searched, in order, when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{
	"./config.yaml",
	"/etc/gorgone/config.yaml",
}

// defaultConfig returns the built-in defaults layered beneath any config
// file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Video: VideoProviderConfig{
				PollInterval: 5 * time.Minute,
			},
			Embedding: EmbeddingProviderConfig{
				ModelID:   "text-embedding-default",
				BatchSize: 96,
			},
			RequestTimeout:              15 * time.Second,
			RateLimitPerSecond:          5.0,
			RateLimitBurst:              10,
			CircuitBreakerMaxRequests:   5,
			CircuitBreakerInterval:      time.Minute,
			CircuitBreakerTimeout:       30 * time.Second,
			CircuitBreakerFailureRatio:  0.6,
			CircuitBreakerMinRequests:   10,
		},
		Database: DatabaseConfig{
			Path:                   "./data/gorgone.duckdb",
			Threads:                0,
			PreserveInsertionOrder: false,
		},
		Queue: QueueConfig{
			Concurrency: map[string]int{
				"refresh_engagement": 8,
				"snapshot_item":      8,
				"poll_rule":          4,
				"vectorize":          2,
			},
			DefaultConcurrency:  4,
			MaxAttempts:         8,
			RetryInitialBackoff: 5 * time.Second,
			RetryMaxBackoff:     10 * time.Minute,
			LeaseDuration:       2 * time.Minute,
			PollInterval:        2 * time.Second,
			InboxWALDir:         "./data/inbox-wal",
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "./data/nats",
			MaxMemory:      256 << 20,
			MaxStore:       1 << 30,
			DurableName:    "gorgone-dispatch",
			AckWait:        30 * time.Second,
		},
		Tracker: defaultTierThresholds(),
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			TLS: TLSConfig{
				CacheDir: "./data/autocert",
			},
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Security: SecurityConfig{
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{},
			TrustedProxies:  []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// defaultTierThresholds mirrors models.DefaultTierThresholds without
// importing internal/models, keeping config dependency-free of the domain
// package graph. TrackerConfig and models.TierThresholds are kept in sync
// by internal/tracker at load time (see tracker.ThresholdsFromConfig).
func defaultTierThresholds() TrackerConfig {
	return TrackerConfig{
		UltraHotVelocity: 50.0,
		HotVelocity:      10.0,
		UltraHotAgeLimit: time.Hour,
		HotAgeLimit:      24 * time.Hour,
		WarmAgeLimit:     7 * 24 * time.Hour,
		UltraHotPeriod:   10 * time.Minute,
		HotPeriod:        30 * time.Minute,
		WarmPeriod:       time.Hour,
	}
}

// Load reads configuration from defaults, an optional config file, and
// environment variables, in that order of increasing precedence, then
// validates the result.
//
//  1. Defaults: built-in sensible defaults
//  2. Config File: optional YAML file (if found)
//  3. Environment Variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("GORGONE_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists koanf paths that must be parsed as comma-separated
// slices when they arrive from an environment variable as a plain string.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
	"server.tls.domains",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps GORGONE_-prefixed environment variable names to
// koanf config paths. Double underscores separate nesting levels so that
// single underscores remain available within a field name, e.g.
// GORGONE_PROVIDER__TWEET__BEARER_TOKEN -> provider.tweet.bearer_token.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, "GORGONE_")
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}
