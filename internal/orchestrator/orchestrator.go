// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package orchestrator is the ingestion entry point: it receives provider
// events (webhook pushes, poll ticks, backfills), drives them through the
// adapter -> store normalization path, and schedules the deferred work
// (vectorization, engagement refreshes, next polls) each batch requires.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/cache"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/embedding"
	"github.com/lkmcompany/gorgone/internal/jobqueue"
	"github.com/lkmcompany/gorgone/internal/jobqueue/inbox"
	"github.com/lkmcompany/gorgone/internal/metrics"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/provider"
	"github.com/lkmcompany/gorgone/internal/rule"
	"github.com/lkmcompany/gorgone/internal/tracker"
)

const (
	// vectorizeDelay gives the item transaction time to settle before the
	// embedding pass reads it back.
	vectorizeDelay = 5 * time.Second

	// firstRefreshDelay is when a freshly ingested item gets its first
	// engagement refresh.
	firstRefreshDelay = time.Hour

	// pollPageSize bounds one poll tick's fetch.
	pollPageSize = 100

	// dedupeCacheSize bounds the recently-seen item cache; entries expire
	// after dedupeCacheTTL anyway, the store's unique key is the real
	// dedup authority.
	dedupeCacheSize = 65536
	dedupeCacheTTL  = 30 * time.Minute
)

// RequestContext carries the request-scoped identity threaded explicitly
// through ingestion calls; the core never reads domain data from ambient
// context values.
type RequestContext struct {
	ZoneID    uuid.UUID
	RuleID    uuid.UUID
	RequestID string
}

// IngestResult is the per-batch outcome returned to webhook callers and
// recorded for polls.
type IngestResult struct {
	Received    int         `json:"received"`
	Inserted    int         `json:"inserted"`
	Duplicates  int         `json:"duplicates"`
	Errors      int         `json:"errors"`
	InsertedIDs []uuid.UUID `json:"-"`
}

// Vectorizer is the slice of the embedding service the orchestrator's
// vectorize handler needs.
type Vectorizer interface {
	EnsureEmbeddings(ctx context.Context, itemIDs []uuid.UUID) (embedding.Result, error)
}

// Searcher is the page-fetch half shared by pull and push adapters.
type Searcher interface {
	Search(ctx context.Context, querySpec string, cursor *string, pageSize int) ([][]byte, *string, error)
}

// Orchestrator wires adapters, the store, the rule registry, the tracker,
// and the job queue into the ingestion flow.
type Orchestrator struct {
	db         *database.DB
	rules      *rule.Registry
	queue      *jobqueue.Queue
	tracker    *tracker.Tracker
	vectorizer Vectorizer
	inbox      *inbox.Inbox

	push      provider.PushAdapter
	adapters  map[models.Provider]provider.Adapter
	searchers map[models.Provider]Searcher

	thresholds models.TierThresholds
	seen       *cache.LRUCache
	logger     zerolog.Logger
	now        func() time.Time
}

// New builds the orchestrator. pulls must carry the video and news
// adapters; the push (tweet) adapter doubles as that provider's searcher
// for backfill.
func New(
	db *database.DB,
	rules *rule.Registry,
	queue *jobqueue.Queue,
	trk *tracker.Tracker,
	vectorizer Vectorizer,
	ibx *inbox.Inbox,
	push provider.PushAdapter,
	pulls map[models.Provider]provider.PullAdapter,
	thresholds models.TierThresholds,
	logger zerolog.Logger,
) *Orchestrator {
	adapters := map[models.Provider]provider.Adapter{push.Tag(): push}
	searchers := map[models.Provider]Searcher{push.Tag(): push}
	for tag, p := range pulls {
		adapters[tag] = p
		searchers[tag] = p
	}

	return &Orchestrator{
		db:         db,
		rules:      rules,
		queue:      queue,
		tracker:    trk,
		vectorizer: vectorizer,
		inbox:      ibx,
		push:       push,
		adapters:   adapters,
		searchers:  searchers,
		thresholds: thresholds,
		seen:       cache.NewLRUCache(dedupeCacheSize, dedupeCacheTTL),
		logger:     logger.With().Str("component", "orchestrator").Logger(),
		now:        time.Now,
	}
}

// ingestBatch normalizes one batch of raw provider payloads into the
// store: parse, upsert author, insert-if-absent, assign initial tier. One
// bad item never aborts the batch.
func (o *Orchestrator) ingestBatch(ctx context.Context, rc RequestContext, adapter provider.Adapter, raws [][]byte) IngestResult {
	result := IngestResult{Received: len(raws)}
	tag := string(adapter.Tag())

	for _, raw := range raws {
		item, err := adapter.ParseItem(raw)
		if err != nil {
			var parseErr *provider.ParseError
			if errors.As(err, &parseErr) {
				metrics.ItemsParseErrorsTotal.WithLabelValues(tag).Inc()
				o.logger.Warn().
					Str("provider", tag).
					Str("rule_id", rc.RuleID.String()).
					Str("reason", parseErr.Reason).
					Msg("item skipped: parse error")
				result.Errors++
				continue
			}
			result.Errors++
			continue
		}

		// Fast-path dedupe for recently seen items; the store's unique key
		// is the authority. The key is only recorded after a successful
		// store round-trip so a failed insert is retried, not skipped.
		seenKey := tag + ":" + item.ProviderItemID
		if o.seen.Contains(seenKey) {
			metrics.ItemsDuplicateTotal.WithLabelValues(tag).Inc()
			result.Duplicates++
			continue
		}

		authorID, err := o.db.UpsertAuthor(ctx, item.Author)
		if err != nil {
			o.logger.Error().Err(err).Str("provider", tag).Msg("author upsert failed")
			result.Errors++
			continue
		}

		ins, err := o.db.InsertItemIfAbsent(ctx, rc.ZoneID, item, &authorID)
		if err != nil {
			o.logger.Error().Err(err).Str("provider", tag).Msg("item insert failed")
			result.Errors++
			continue
		}
		o.seen.Add(seenKey, o.now())

		if !ins.Inserted {
			metrics.ItemsDuplicateTotal.WithLabelValues(tag).Inc()
			result.Duplicates++
			continue
		}

		metrics.ItemsIngestedTotal.WithLabelValues(tag, rc.ZoneID.String()).Inc()
		result.Inserted++
		result.InsertedIDs = append(result.InsertedIDs, ins.ID)

		o.assignInitialTier(ctx, ins.ID, item.CreatedAtSource)
	}

	return result
}

// assignInitialTier writes the ingest-time tracking row. Failures here are
// logged, not fatal: the item is persisted and the self-heal refresh sweep
// will pick it up.
func (o *Orchestrator) assignInitialTier(ctx context.Context, itemID uuid.UUID, createdAtSource time.Time) {
	now := o.now()
	tier := tracker.AssignInitialTier(now.Sub(createdAtSource), o.thresholds)

	var nextUpdateAt *time.Time
	if period := tracker.RefreshPeriod(tier, o.thresholds); period != nil {
		at := now.Add(*period)
		nextUpdateAt = &at
	}
	if _, err := o.db.UpsertTracking(ctx, itemID, tier, nextUpdateAt, false); err != nil {
		o.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("initial tracking write failed")
	}
}

// scheduleIngestJobs enqueues the deferred work a batch of fresh inserts
// requires: one vectorize batch and one first-tick refresh per item. A
// failed enqueue loses downstream work for this batch only.
func (o *Orchestrator) scheduleIngestJobs(ctx context.Context, zoneID uuid.UUID, insertedIDs []uuid.UUID) {
	if len(insertedIDs) == 0 {
		return
	}

	if _, err := o.queue.EnqueueVectorize(ctx, insertedIDs, zoneID, vectorizeDelay); err != nil {
		o.logger.Error().Err(err).Int("items", len(insertedIDs)).Msg("vectorize enqueue failed")
	}
	for _, id := range insertedIDs {
		if _, err := o.queue.EnqueueRefreshEngagement(ctx, id, firstRefreshDelay); err != nil {
			o.logger.Error().Err(err).Str("item_id", id.String()).Msg("refresh enqueue failed")
		}
	}
}
