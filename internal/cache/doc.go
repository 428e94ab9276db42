// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package cache provides an in-memory, TTL-bounded LRU structure used to
// speed up idempotency-key and dedup lookups ahead of a database round-trip.
//
// It is never the source of truth: the job scheduler's idempotency-key
// uniqueness and the item store's (provider, provider_item_id) uniqueness
// are always enforced by the database. This cache only avoids an unnecessary
// round-trip for the common case of seeing the same key again within its TTL.
package cache
