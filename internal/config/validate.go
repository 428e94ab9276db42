// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package config

import (
	"fmt"
	"net/url"
)

// Validate checks that required configuration is present and well-formed.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func (c *Config) validateProvider() error {
	if c.Provider.Tweet.BaseURL != "" {
		if err := validateHTTPURL(c.Provider.Tweet.BaseURL, "provider.tweet.base_url"); err != nil {
			return err
		}
	}
	if c.Provider.Video.BaseURL != "" {
		if err := validateHTTPURL(c.Provider.Video.BaseURL, "provider.video.base_url"); err != nil {
			return err
		}
	}
	if c.Provider.News.BaseURL != "" {
		if err := validateHTTPURL(c.Provider.News.BaseURL, "provider.news.base_url"); err != nil {
			return err
		}
	}
	if c.Provider.Embedding.BatchSize <= 0 {
		return fmt.Errorf("provider.embedding.batch_size must be positive")
	}
	if c.Provider.Embedding.BatchSize > 96 {
		return fmt.Errorf("provider.embedding.batch_size must not exceed 96")
	}
	if c.Provider.RateLimitPerSecond <= 0 {
		return fmt.Errorf("provider.rate_limit_per_second must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive")
	}
	if c.Queue.DefaultConcurrency <= 0 {
		return fmt.Errorf("queue.default_concurrency must be positive")
	}
	if c.Queue.RetryMaxBackoff < c.Queue.RetryInitialBackoff {
		return fmt.Errorf("queue.retry_max_backoff must be >= queue.retry_initial_backoff")
	}
	if c.Queue.CallbackSigningSecret == "" {
		return fmt.Errorf("queue.callback_signing_secret is required")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled=true")
	}
	return validateNATSURL(c.NATS.URL)
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.PublicURL != "" {
		if err := validateHTTPURL(c.Server.PublicURL, "server.public_url"); err != nil {
			return err
		}
	}
	if c.Server.TLS.AutocertEnabled && len(c.Server.TLS.Domains) == 0 {
		return fmt.Errorf("server.tls.domains is required when server.tls.autocert_enabled=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error, got: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got: %s", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL validates that a URL is an absolute http(s) base URL.
func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}

// validateNATSURL validates a nats://, tls://, or ws(s):// connection URL.
func validateNATSURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("nats.url failed to parse: %w", err)
	}
	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsed.Scheme] {
		return fmt.Errorf("nats.url scheme must be nats, tls, ws, or wss, got: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("nats.url host is required")
	}
	return nil
}
