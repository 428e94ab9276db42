// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lkmcompany/gorgone/internal/models"
)

// PollTick runs one poll for a pull-provider rule: fetch a bounded page,
// ingest it, update the rule's poll stats, and enqueue the next tick at
// last_polled_at + interval. Serialization per rule is the job scheduler's
// poll_rule idempotency key, not a lock here.
func (o *Orchestrator) PollTick(ctx context.Context, ruleID uuid.UUID) error {
	r, err := o.rules.Get(ctx, ruleID)
	if err != nil {
		return fmt.Errorf("orchestrator: load rule %s: %w", ruleID, err)
	}
	if !r.IsActive {
		o.logger.Info().Str("rule_id", ruleID.String()).Msg("poll tick for inactive rule, not rescheduling")
		return nil
	}

	tag := r.Kind.Provider()
	searcher, ok := o.searchers[tag]
	if !ok {
		return fmt.Errorf("orchestrator: no searcher for provider %s", tag)
	}
	adapter := o.adapters[tag]

	raws, _, err := searcher.Search(ctx, r.QuerySpec, nil, pollPageSize)
	if err != nil {
		// The job scheduler retries with backoff; the next regular tick is
		// enqueued only after a successful poll.
		return fmt.Errorf("orchestrator: poll rule %s: %w", ruleID, err)
	}

	rc := RequestContext{ZoneID: r.ZoneID, RuleID: r.ID}
	result := o.ingestBatch(ctx, rc, adapter, raws)

	if err := o.rules.RecordPoll(ctx, r.ID, result.Inserted); err != nil {
		return fmt.Errorf("orchestrator: record poll %s: %w", ruleID, err)
	}
	o.scheduleIngestJobs(ctx, r.ZoneID, result.InsertedIDs)

	next := o.now().Add(time.Duration(r.IntervalSeconds) * time.Second)
	if _, err := o.queue.EnqueuePollRule(ctx, r.ID, next); err != nil {
		return fmt.Errorf("orchestrator: schedule next poll %s: %w", ruleID, err)
	}

	o.logger.Info().
		Str("rule_id", r.ID.String()).
		Str("provider", string(tag)).
		Int("received", result.Received).
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Int("errors", result.Errors).
		Time("next_poll", next).
		Msg("poll tick complete")
	return nil
}

// BootstrapPolls seeds a poll_rule job for every active pull rule at
// startup. The poll_rule idempotency key makes this safe to run on every
// boot: rules with a pending tick are untouched.
func (o *Orchestrator) BootstrapPolls(ctx context.Context) error {
	rules, err := o.db.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: list active rules: %w", err)
	}

	seeded := 0
	for _, r := range rules {
		if r.IsPushMirrored() {
			continue
		}
		at := o.now()
		if r.LastPolledAt != nil {
			due := r.LastPolledAt.Add(time.Duration(r.IntervalSeconds) * time.Second)
			if due.After(at) {
				at = due
			}
		}
		if _, err := o.queue.EnqueuePollRule(ctx, r.ID, at); err != nil {
			return fmt.Errorf("orchestrator: seed poll for rule %s: %w", r.ID, err)
		}
		seeded++
	}

	o.logger.Info().Int("rules", seeded).Msg("poll bootstrap complete")
	return nil
}

// SweepDueRefreshes re-enqueues snapshot ticks for tracked items whose
// next_update_at has passed without a pending job — the self-heal path for
// a refresh job lost to a crash between lease and completion.
func (o *Orchestrator) SweepDueRefreshes(ctx context.Context, limit int) (int, error) {
	ids, err := o.db.DueForRefresh(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: due refresh sweep: %w", err)
	}
	for _, id := range ids {
		if _, err := o.queue.EnqueueSnapshot(ctx, id, o.now()); err != nil {
			return 0, fmt.Errorf("orchestrator: reseed snapshot %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// refreshItem runs one tracker tick for an item and schedules the next
// snapshot at the tier's cadence. Cold items schedule nothing.
func (o *Orchestrator) refreshItem(ctx context.Context, itemID uuid.UUID) error {
	if err := o.tracker.Refresh(ctx, itemID); err != nil {
		return err
	}

	tracking, err := o.db.GetTracking(ctx, itemID)
	if err != nil {
		return fmt.Errorf("orchestrator: read tracking %s: %w", itemID, err)
	}
	if tracking.Tier == models.TierCold || tracking.NextUpdateAt == nil {
		return nil
	}
	if _, err := o.queue.EnqueueSnapshot(ctx, itemID, *tracking.NextUpdateAt); err != nil {
		return fmt.Errorf("orchestrator: schedule next snapshot %s: %w", itemID, err)
	}
	return nil
}
