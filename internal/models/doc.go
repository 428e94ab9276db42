// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package models defines the canonical domain entities shared by the item
// store, engagement tracker, rule registry, and job scheduler: Zone, Rule,
// Author, Item, Entity, EngagementSnapshot, Tracking, Job, and
// EmbeddingCache. These mirror the invariants of the shared database
// contract; external collaborators (the chat/tool layer, the web UI, CRUD
// endpoints) read the same tables through their own models.
package models
