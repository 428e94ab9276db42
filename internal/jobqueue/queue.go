// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/metrics"
	"github.com/lkmcompany/gorgone/internal/models"
)

// Queue is the enqueue side of the scheduler: it persists jobs to the
// durable jobs table and nudges the dispatcher's workers over the wake bus.
type Queue struct {
	db     *database.DB
	cfg    config.QueueConfig
	bus    *wakeBus
	logger zerolog.Logger
}

// NewQueue opens the wake bus (in-process GoChannel by default, NATS
// JetStream when natsCfg.Enabled) and returns a Queue sharing it with the
// dispatcher.
func NewQueue(db *database.DB, cfg config.QueueConfig, natsCfg config.NATSConfig, logger zerolog.Logger) (*Queue, error) {
	bus, err := newWakeBus(natsCfg, watermill.NewStdLogger(false, false))
	if err != nil {
		return nil, err
	}
	return &Queue{
		db:     db,
		cfg:    cfg,
		bus:    bus,
		logger: logger.With().Str("component", "jobqueue").Logger(),
	}, nil
}

// Close shuts the wake bus down. The jobs table itself is owned by the
// database layer.
func (q *Queue) Close() error {
	return q.bus.Close()
}

// Enqueue persists one job. A non-nil idempotencyKey matching an existing
// non-terminal job on the same topic makes the call a no-op returning that
// job.
func (q *Queue) Enqueue(ctx context.Context, topic string, payload any, runAfter time.Time, idempotencyKey *string) (models.Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Job{}, fmt.Errorf("jobqueue: marshal %s payload: %w", topic, err)
	}

	job, err := q.db.EnqueueJob(ctx, topic, body, runAfter, idempotencyKey, q.cfg.MaxAttempts)
	if err != nil {
		return models.Job{}, fmt.Errorf("jobqueue: enqueue %s: %w", topic, err)
	}

	metrics.JobsEnqueuedTotal.WithLabelValues(topic).Inc()
	q.bus.notify(topic)
	return job, nil
}

// EnqueueVectorize schedules an embedding pass over freshly inserted items.
func (q *Queue) EnqueueVectorize(ctx context.Context, itemIDs []uuid.UUID, zoneID uuid.UUID, delay time.Duration) (models.Job, error) {
	return q.Enqueue(ctx, models.TopicVectorize, VectorizePayload{ItemIDs: itemIDs, ZoneID: zoneID}, time.Now().Add(delay), nil)
}

// EnqueueRefreshEngagement schedules an item's first engagement refresh.
func (q *Queue) EnqueueRefreshEngagement(ctx context.Context, itemID uuid.UUID, delay time.Duration) (models.Job, error) {
	key := RefreshKey(itemID)
	return q.Enqueue(ctx, models.TopicRefreshEngagement, RefreshEngagementPayload{ItemID: itemID}, time.Now().Add(delay), &key)
}

// EnqueueSnapshot schedules the next recurring snapshot tick for an item.
// The idempotency key keeps at most one pending snapshot per item.
func (q *Queue) EnqueueSnapshot(ctx context.Context, itemID uuid.UUID, at time.Time) (models.Job, error) {
	key := SnapshotKey(itemID)
	return q.Enqueue(ctx, models.TopicSnapshotItem, SnapshotItemPayload{ItemID: itemID}, at, &key)
}

// EnqueuePollRule schedules a rule's next poll tick.
func (q *Queue) EnqueuePollRule(ctx context.Context, ruleID uuid.UUID, at time.Time) (models.Job, error) {
	key := PollRuleKey(ruleID)
	return q.Enqueue(ctx, models.TopicPollRule, PollRulePayload{RuleID: ruleID}, at, &key)
}

// EnqueueBackfill schedules an on-demand backfill run for a rule.
func (q *Queue) EnqueueBackfill(ctx context.Context, ruleID uuid.UUID, requestedCount int) (models.Job, error) {
	key := BackfillKey(ruleID)
	return q.Enqueue(ctx, models.TopicBackfillRule, BackfillRulePayload{RuleID: ruleID, RequestedCount: requestedCount}, time.Now(), &key)
}
