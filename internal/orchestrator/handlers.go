// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package orchestrator

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/lkmcompany/gorgone/internal/jobqueue"
	"github.com/lkmcompany/gorgone/internal/models"
)

// RegisterHandlers binds every job topic the orchestrator drives to the
// dispatcher. Handlers are idempotent: the store's unique keys and the
// tracker's update_count monotonicity absorb at-least-once redelivery.
func (o *Orchestrator) RegisterHandlers(d *jobqueue.Dispatcher) {
	d.Register(models.TopicRefreshEngagement, o.handleRefresh)
	d.Register(models.TopicSnapshotItem, o.handleRefresh)
	d.Register(models.TopicPollRule, o.handlePollRule)
	d.Register(models.TopicVectorize, o.handleVectorize)
	d.Register(models.TopicBackfillRule, o.handleBackfill)
}

func (o *Orchestrator) handleRefresh(ctx context.Context, job models.Job) error {
	var p jobqueue.RefreshEngagementPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", job.Topic, err)
	}
	return o.refreshItem(ctx, p.ItemID)
}

func (o *Orchestrator) handlePollRule(ctx context.Context, job models.Job) error {
	var p jobqueue.PollRulePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode poll_rule payload: %w", err)
	}
	return o.PollTick(ctx, p.RuleID)
}

func (o *Orchestrator) handleVectorize(ctx context.Context, job models.Job) error {
	var p jobqueue.VectorizePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode vectorize payload: %w", err)
	}

	result, err := o.vectorizer.EnsureEmbeddings(ctx, p.ItemIDs)
	if err != nil {
		return err
	}
	o.logger.Info().
		Str("zone_id", p.ZoneID.String()).
		Int("total", result.Total).
		Int("newly", result.NewlyVectorized).
		Int("failed", result.Failed).
		Float64("cache_hit_rate", result.CacheHitRate).
		Msg("vectorize batch complete")
	return nil
}

func (o *Orchestrator) handleBackfill(ctx context.Context, job models.Job) error {
	var p jobqueue.BackfillRulePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode backfill payload: %w", err)
	}
	_, err := o.Backfill(ctx, p.RuleID, p.RequestedCount)
	return err
}
