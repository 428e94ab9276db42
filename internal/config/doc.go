// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

/*
Package config provides centralized configuration management for Gorgone.

Configuration Loading Order (Koanf v2):

 1. Defaults: Built-in sensible defaults for all optional settings
 2. Config File: Optional YAML config file (config.yaml) for persistent settings
 3. Environment Variables: Override any setting, highest priority

Configuration Categories:

  - Provider: credentials and base URLs for the push (tweet), poll (video),
    and rule-driven-poll (news) providers, plus the embedding service
  - Database: DuckDB path and connection tuning
  - Queue: job-dispatch transport (in-process GoChannel or NATS JetStream),
    worker concurrency per topic, retry backoff, callback signing secret
  - Tracker: default tier thresholds applied when a zone has no override
  - Server: HTTP listen address and timeouts
  - API: pagination limits
  - Security: CORS, rate limiting, trusted proxies
  - Logging: level and output format

Example:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	db, err := database.New(&cfg.Database)

Config is immutable after Load() and safe for concurrent read access.
*/
package config
