// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lkmcompany/gorgone/internal/database"
)

// maxBackfillPages caps one backfill invocation regardless of
// requestedCount, so a misbehaving cursor cannot loop forever. The saved
// cursor lets a follow-up invocation continue where this one stopped.
const maxBackfillPages = 50

// Backfill pulls pages for a rule until requestedCount items have been
// collected or the provider returns an empty page. Progress (cursor and
// collected count) is persisted after every page, so a crashed backfill
// resumes instead of restarting.
func (o *Orchestrator) Backfill(ctx context.Context, ruleID uuid.UUID, requestedCount int) (IngestResult, error) {
	r, err := o.rules.Get(ctx, ruleID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("orchestrator: load rule %s: %w", ruleID, err)
	}

	tag := r.Kind.Provider()
	searcher, ok := o.searchers[tag]
	if !ok {
		return IngestResult{}, fmt.Errorf("orchestrator: no searcher for provider %s", tag)
	}
	adapter := o.adapters[tag]

	var cursor *string
	collected := 0
	if saved, err := o.db.GetBackfillCursor(ctx, ruleID); err != nil {
		return IngestResult{}, fmt.Errorf("orchestrator: load backfill cursor: %w", err)
	} else if saved != nil && saved.RequestedCount == requestedCount {
		if saved.Cursor != "" {
			c := saved.Cursor
			cursor = &c
		}
		collected = saved.CollectedCount
	}

	rc := RequestContext{ZoneID: r.ZoneID, RuleID: r.ID}
	var total IngestResult

	for page := 0; page < maxBackfillPages && collected < requestedCount; page++ {
		pageSize := pollPageSize
		if remaining := requestedCount - collected; remaining < pageSize {
			pageSize = remaining
		}

		raws, nextCursor, err := searcher.Search(ctx, r.QuerySpec, cursor, pageSize)
		if err != nil {
			return total, fmt.Errorf("orchestrator: backfill page for rule %s: %w", ruleID, err)
		}
		if len(raws) == 0 {
			break
		}

		result := o.ingestBatch(ctx, rc, adapter, raws)
		total.Received += result.Received
		total.Inserted += result.Inserted
		total.Duplicates += result.Duplicates
		total.Errors += result.Errors
		total.InsertedIDs = append(total.InsertedIDs, result.InsertedIDs...)
		collected += result.Received

		o.scheduleIngestJobs(ctx, r.ZoneID, result.InsertedIDs)

		savedCursor := ""
		if nextCursor != nil {
			savedCursor = *nextCursor
		}
		if err := o.db.SaveBackfillCursor(ctx, database.BackfillCursor{
			RuleID:         ruleID,
			Cursor:         savedCursor,
			RequestedCount: requestedCount,
			CollectedCount: collected,
		}); err != nil {
			return total, fmt.Errorf("orchestrator: save backfill cursor: %w", err)
		}

		if nextCursor == nil {
			break
		}
		cursor = nextCursor
	}

	if total.Inserted > 0 {
		if err := o.rules.RecordPoll(ctx, r.ID, total.Inserted); err != nil {
			o.logger.Warn().Err(err).Str("rule_id", r.ID.String()).Msg("rule stats update failed")
		}
	}
	if err := o.db.ClearBackfillCursor(ctx, ruleID); err != nil {
		o.logger.Warn().Err(err).Str("rule_id", ruleID.String()).Msg("backfill cursor clear failed")
	}

	o.logger.Info().
		Str("rule_id", r.ID.String()).
		Int("requested", requestedCount).
		Int("received", total.Received).
		Int("inserted", total.Inserted).
		Msg("backfill complete")
	return total, nil
}
