// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"
	"strings"
	"time"
)

// createTables creates every table of the shared database contract,
// idempotently.
// DuckDB has no partial/expression indexes or deferred FK enforcement, so
// uniqueness invariants are expressed as plain UNIQUE
// constraints rather than application-managed locks where possible.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	statements := []string{
		// zones/clients are read-only to the core (owned by external
		// collaborators) but the core needs a local copy to resolve
		// zone_id and settings without a cross-service call.
		`CREATE TABLE IF NOT EXISTS clients (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS zones (
			id UUID PRIMARY KEY,
			client_id UUID NOT NULL,
			source_tweet BOOLEAN NOT NULL DEFAULT false,
			source_video BOOLEAN NOT NULL DEFAULT false,
			source_news BOOLEAN NOT NULL DEFAULT false,
			settings_json TEXT NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id UUID PRIMARY KEY,
			zone_id UUID NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			query_spec TEXT NOT NULL,
			interval_seconds INTEGER NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			external_rule_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_polled_at TIMESTAMPTZ,
			total_items_collected BIGINT NOT NULL DEFAULT 0,
			last_item_count INTEGER NOT NULL DEFAULT 0,
			UNIQUE (zone_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS authors (
			id UUID PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_user_id TEXT NOT NULL,
			handle TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			verified BOOLEAN NOT NULL DEFAULT false,
			follower_count BIGINT NOT NULL DEFAULT 0,
			following_count BIGINT NOT NULL DEFAULT 0,
			heart_count BIGINT NOT NULL DEFAULT 0,
			post_count BIGINT NOT NULL DEFAULT 0,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			total_items_collected BIGINT NOT NULL DEFAULT 0,
			location TEXT,
			language TEXT,
			UNIQUE (provider, provider_user_id),
			UNIQUE (provider, handle)
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id UUID PRIMARY KEY,
			zone_id UUID NOT NULL,
			provider TEXT NOT NULL,
			provider_item_id TEXT NOT NULL,
			author_id UUID,
			text TEXT NOT NULL DEFAULT '',
			language TEXT,
			created_at_source TIMESTAMPTZ NOT NULL,
			reply_to_item_id UUID,
			counter_view BIGINT NOT NULL DEFAULT 0,
			counter_like BIGINT NOT NULL DEFAULT 0,
			counter_share BIGINT NOT NULL DEFAULT 0,
			counter_comment BIGINT NOT NULL DEFAULT 0,
			counter_quote BIGINT NOT NULL DEFAULT 0,
			counter_bookmark BIGINT NOT NULL DEFAULT 0,
			counter_collect BIGINT NOT NULL DEFAULT 0,
			has_links BOOLEAN NOT NULL DEFAULT false,
			raw_payload BLOB,
			predictions_json TEXT,
			vector BLOB,
			vectorized_at TIMESTAMPTZ,
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (provider, provider_item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			item_id UUID NOT NULL,
			zone_id UUID NOT NULL,
			kind TEXT NOT NULL,
			value TEXT NOT NULL,
			normalized_value TEXT NOT NULL,
			UNIQUE (item_id, kind, normalized_value)
		)`,
		`CREATE TABLE IF NOT EXISTS engagement_history (
			item_id UUID NOT NULL,
			snapshot_at TIMESTAMPTZ NOT NULL,
			counter_view BIGINT NOT NULL DEFAULT 0,
			counter_like BIGINT NOT NULL DEFAULT 0,
			counter_share BIGINT NOT NULL DEFAULT 0,
			counter_comment BIGINT NOT NULL DEFAULT 0,
			counter_quote BIGINT NOT NULL DEFAULT 0,
			counter_bookmark BIGINT NOT NULL DEFAULT 0,
			counter_collect BIGINT NOT NULL DEFAULT 0,
			delta_view BIGINT NOT NULL DEFAULT 0,
			delta_like BIGINT NOT NULL DEFAULT 0,
			delta_share BIGINT NOT NULL DEFAULT 0,
			delta_comment BIGINT NOT NULL DEFAULT 0,
			delta_quote BIGINT NOT NULL DEFAULT 0,
			delta_bookmark BIGINT NOT NULL DEFAULT 0,
			delta_collect BIGINT NOT NULL DEFAULT 0,
			velocity DOUBLE NOT NULL DEFAULT 0,
			UNIQUE (item_id, snapshot_at)
		)`,
		`CREATE TABLE IF NOT EXISTS engagement_tracking (
			item_id UUID PRIMARY KEY,
			tier TEXT NOT NULL,
			next_update_at TIMESTAMPTZ,
			update_count BIGINT NOT NULL DEFAULT 0,
			last_updated_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY,
			topic TEXT NOT NULL,
			payload BLOB NOT NULL,
			run_after TIMESTAMPTZ NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 5,
			idempotency_key TEXT,
			state TEXT NOT NULL DEFAULT 'pending',
			lease_until TIMESTAMPTZ,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// idempotency_key uniqueness only needs to hold while the job is
		// non-terminal; DuckDB has no partial-index support, so this is
		// enforced in application code in jobs.go rather than the schema.
		`CREATE TABLE IF NOT EXISTS dead_letters (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL,
			topic TEXT NOT NULL,
			payload BLOB NOT NULL,
			last_error TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			failed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT PRIMARY KEY,
			vector BLOB NOT NULL,
			model_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// Materialized read aggregates, refreshed on a fixed cadence by
		// internal/aggregate and consumed by external collaborators.
		`CREATE TABLE IF NOT EXISTS agg_top_authors (
			zone_id UUID NOT NULL,
			window_seconds BIGINT NOT NULL,
			rank INTEGER NOT NULL,
			author_id UUID NOT NULL,
			handle TEXT NOT NULL,
			item_count BIGINT NOT NULL,
			total_likes BIGINT NOT NULL,
			total_views BIGINT NOT NULL,
			refreshed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (zone_id, window_seconds, rank)
		)`,
		`CREATE TABLE IF NOT EXISTS agg_overview (
			zone_id UUID NOT NULL,
			window_seconds BIGINT NOT NULL,
			item_count BIGINT NOT NULL,
			unique_authors BIGINT NOT NULL,
			total_likes BIGINT NOT NULL,
			total_views BIGINT NOT NULL,
			total_comments BIGINT NOT NULL,
			refreshed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (zone_id, window_seconds)
		)`,
		`CREATE TABLE IF NOT EXISTS agg_zone_locations (
			zone_id UUID NOT NULL,
			location TEXT NOT NULL,
			refreshed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (zone_id, location)
		)`,
		// backfill_cursors persists the last-seen pagination cursor so a
		// crashed backfill run resumes instead of restarting.
		`CREATE TABLE IF NOT EXISTS backfill_cursors (
			rule_id UUID PRIMARY KEY,
			cursor TEXT NOT NULL DEFAULT '',
			requested_count INTEGER NOT NULL DEFAULT 0,
			collected_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return tableCreationError(stmt, err)
		}
	}
	return nil
}

// createIndexes builds the secondary indexes the read/write paths in
// internal/database, internal/tracker, and internal/aggregate rely on.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_items_zone ON items (zone_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_author ON items (author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_created_at_source ON items (created_at_source)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_item ON entities (item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_zone_kind_value ON entities (zone_id, kind, normalized_value)`,
		`CREATE INDEX IF NOT EXISTS idx_engagement_history_item ON engagement_history (item_id, snapshot_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_next_update ON engagement_tracking (tier, next_update_at)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_pending ON jobs (state, run_after)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_topic ON jobs (topic, state)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_zone ON rules (zone_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_external ON rules (external_rule_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return tableCreationError(stmt, err)
		}
	}
	return nil
}

func tableCreationError(stmt string, err error) error {
	name := stmt
	if idx := strings.Index(stmt, "EXISTS "); idx >= 0 {
		name = strings.Fields(stmt[idx+len("EXISTS "):])[0]
	}
	return &SchemaError{Object: name, Err: err}
}

// SchemaError wraps a failure creating a table or index during startup
// migration.
type SchemaError struct {
	Object string
	Err    error
}

func (e *SchemaError) Error() string {
	return "schema: create " + e.Object + ": " + e.Err.Error()
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
