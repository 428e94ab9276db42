// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	t.Setenv("GORGONE_QUEUE__CALLBACK_SIGNING_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./data/gorgone.duckdb" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if cfg.Queue.Concurrency["refresh_engagement"] != 8 {
		t.Errorf("Queue.Concurrency[refresh_engagement] = %d, want 8", cfg.Queue.Concurrency["refresh_engagement"])
	}
	if cfg.Queue.Concurrency["vectorize"] != 2 {
		t.Errorf("Queue.Concurrency[vectorize] = %d, want 2", cfg.Queue.Concurrency["vectorize"])
	}
	if cfg.Tracker.UltraHotVelocity != 50.0 {
		t.Errorf("Tracker.UltraHotVelocity = %v, want 50.0", cfg.Tracker.UltraHotVelocity)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Clearenv()
	t.Setenv("GORGONE_QUEUE__CALLBACK_SIGNING_SECRET", "test-secret")
	t.Setenv("GORGONE_SERVER__PORT", "9090")
	t.Setenv("GORGONE_PROVIDER__TWEET__BASE_URL", "https://tweet.example.com")
	t.Setenv("GORGONE_SECURITY__CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Provider.Tweet.BaseURL != "https://tweet.example.com" {
		t.Errorf("Provider.Tweet.BaseURL = %q, want override", cfg.Provider.Tweet.BaseURL)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Errorf("Security.CORSOrigins = %v, want 2 entries", cfg.Security.CORSOrigins)
	}
}

func TestLoad_MissingCallbackSecretFails(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for missing callback_signing_secret")
	}
}

func TestValidate_RejectsBadEmbeddingBatchSize(t *testing.T) {
	cfg := defaultConfig()
	cfg.Queue.CallbackSigningSecret = "test-secret"
	cfg.Provider.Embedding.BatchSize = 200

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() error = nil, want error for batch size > 96")
	}
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Queue.CallbackSigningSecret = "test-secret"
	cfg.Logging.Level = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() error = nil, want error for invalid log level")
	}
}
