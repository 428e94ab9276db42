// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package config

import "time"

// Config holds all application configuration loaded from environment
// variables and an optional config file.
type Config struct {
	Provider ProviderConfig `koanf:"provider"`
	Database DatabaseConfig `koanf:"database"`
	Queue    QueueConfig    `koanf:"queue"`
	NATS     NATSConfig     `koanf:"nats"` // Optional: durable multi-instance job transport
	Tracker  TrackerConfig  `koanf:"tracker"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TweetProviderConfig holds push-provider (webhook subscription) settings.
type TweetProviderConfig struct {
	BaseURL            string `koanf:"base_url"`
	BearerToken        string `koanf:"bearer_token"`
	WebhookSecret      string `koanf:"webhook_secret"`
	SubscriptionPrefix string `koanf:"subscription_prefix"`
}

// VideoProviderConfig holds short-video poll-adapter settings.
type VideoProviderConfig struct {
	BaseURL      string        `koanf:"base_url"`
	APIKey       string        `koanf:"api_key"`
	APISecret    string        `koanf:"api_secret"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// NewsProviderConfig holds rule-driven-poll news-provider settings.
type NewsProviderConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// EmbeddingProviderConfig holds the embedding service used by the content
// embedding cache.
type EmbeddingProviderConfig struct {
	BaseURL   string `koanf:"base_url"`
	APIKey    string `koanf:"api_key"`
	ModelID   string `koanf:"model_id"`
	BatchSize int    `koanf:"batch_size"` // capped at 96 regardless of this value
}

// ProviderConfig groups the three ingestion-source adapters and the
// embedding service, plus the shared resilience settings applied to every
// outbound provider HTTP client.
type ProviderConfig struct {
	Tweet     TweetProviderConfig     `koanf:"tweet"`
	Video     VideoProviderConfig     `koanf:"video"`
	News      NewsProviderConfig      `koanf:"news"`
	Embedding EmbeddingProviderConfig `koanf:"embedding"`

	// RequestTimeout bounds a single outbound provider HTTP call.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RateLimitPerSecond is the token-bucket refill rate applied per
	// provider client (golang.org/x/time/rate).
	RateLimitPerSecond float64 `koanf:"rate_limit_per_second"`
	RateLimitBurst     int     `koanf:"rate_limit_burst"`

	// CircuitBreaker settings, applied identically to each provider client's
	// sony/gobreaker/v2 breaker.
	CircuitBreakerMaxRequests   uint32        `koanf:"circuit_breaker_max_requests"`
	CircuitBreakerInterval      time.Duration `koanf:"circuit_breaker_interval"`
	CircuitBreakerTimeout       time.Duration `koanf:"circuit_breaker_timeout"`
	CircuitBreakerFailureRatio  float64       `koanf:"circuit_breaker_failure_ratio"`
	CircuitBreakerMinRequests   uint32        `koanf:"circuit_breaker_min_requests"`
}

// DatabaseConfig holds DuckDB connection settings.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = DuckDB default (NumCPU)
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// QueueConfig holds the durable job-queue settings: dispatch concurrency,
// retry backoff, and the callback HMAC secret used to sign and verify
// orchestrator-issued delayed-job callbacks.
type QueueConfig struct {
	// Concurrency per topic, keyed by models.Topic* constants. Unlisted
	// topics fall back to DefaultConcurrency.
	Concurrency        map[string]int `koanf:"concurrency"`
	DefaultConcurrency int            `koanf:"default_concurrency"`

	MaxAttempts         int           `koanf:"max_attempts"`
	RetryInitialBackoff time.Duration `koanf:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `koanf:"retry_max_backoff"`

	// LeaseDuration bounds how long a dispatched job may run before another
	// worker is allowed to reclaim it as abandoned.
	LeaseDuration time.Duration `koanf:"lease_duration"`

	// PollInterval is how often the scheduler polls the database for
	// due jobs when running without NATS push delivery.
	PollInterval time.Duration `koanf:"poll_interval"`

	// CallbackSigningSecret signs/verifies the HMAC-SHA256 signature on
	// inbound job callbacks.
	CallbackSigningSecret string `koanf:"callback_signing_secret"`

	// CallbackBearerToken is accepted on a job callback only when the
	// signature header is absent (local/dev queue services).
	CallbackBearerToken string `koanf:"callback_bearer_token"`

	// InboxWALDir is the BadgerDB write-ahead-log directory used to stage
	// inbound webhook payloads durably ahead of their DuckDB commit.
	InboxWALDir string `koanf:"inbox_wal_dir"`
}

// NATSConfig holds the optional NATS JetStream transport used in place of
// the default in-process Watermill GoChannel transport when multiple
// instances must share one durable job queue.
type NATSConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	DurableName    string        `koanf:"durable_name"`
	AckWait        time.Duration `koanf:"ack_wait"`
}

// TrackerConfig holds the global-default engagement-tier thresholds applied
// when a zone has no override in its ZoneSettings (models.TierThresholds).
type TrackerConfig struct {
	UltraHotVelocity float64       `koanf:"ultra_hot_velocity"`
	HotVelocity      float64       `koanf:"hot_velocity"`
	UltraHotAgeLimit time.Duration `koanf:"ultra_hot_age_limit"`
	HotAgeLimit      time.Duration `koanf:"hot_age_limit"`
	WarmAgeLimit     time.Duration `koanf:"warm_age_limit"`
	UltraHotPeriod   time.Duration `koanf:"ultra_hot_period"`
	HotPeriod        time.Duration `koanf:"hot_period"`
	WarmPeriod       time.Duration `koanf:"warm_period"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	PublicURL       string        `koanf:"public_url"` // used to build provider callback subscription URLs
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TLS             TLSConfig     `koanf:"tls"`
}

// TLSConfig enables automatic Let's Encrypt certificates for the public
// webhook endpoint. Providers require HTTPS callback URLs; running behind
// a TLS-terminating proxy instead leaves this disabled.
type TLSConfig struct {
	AutocertEnabled bool     `koanf:"autocert_enabled"`
	Domains         []string `koanf:"domains"`
	CacheDir        string   `koanf:"cache_dir"`
}

// APIConfig holds API pagination and response settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds ingress authentication and traffic-shaping settings.
type SecurityConfig struct {
	AdminToken        string        `koanf:"admin_token"` // bearer token for zone/rule management endpoints
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
}

// LoggingConfig holds structured-logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}
