// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package orchestrator

import (
	"context"
	"fmt"

	"github.com/lkmcompany/gorgone/internal/jobqueue/inbox"
)

// StageAndHandleWebhook durably stages a webhook body in the inbox, parses
// it, ingests the batch, and confirms the entry once the batch committed.
// If ingestion fails, the entry stays staged and is replayed on the next
// startup instead of being lost.
func (o *Orchestrator) StageAndHandleWebhook(ctx context.Context, externalRuleID string, body []byte) (IngestResult, error) {
	entryID := ""
	if o.inbox != nil {
		var err error
		entryID, err = o.inbox.Stage(ctx, externalRuleID, body)
		if err != nil {
			// Staging is protection, not a gate: ingest anyway.
			o.logger.Warn().Err(err).Msg("inbox staging failed, ingesting unstaged")
			entryID = ""
		}
	}

	raws, err := o.push.ParseWebhook(body)
	if err != nil {
		if entryID != "" {
			// A malformed body will never parse on replay either.
			_ = o.inbox.Confirm(ctx, entryID)
		}
		return IngestResult{}, err
	}

	result, err := o.HandleWebhook(ctx, externalRuleID, raws)
	if err != nil {
		return result, err
	}

	if entryID != "" {
		if cerr := o.inbox.Confirm(ctx, entryID); cerr != nil {
			o.logger.Warn().Err(cerr).Str("entry_id", entryID).Msg("inbox confirm failed")
		}
	}
	return result, nil
}

// HandleWebhook ingests one already-parsed webhook batch. An empty
// externalRuleID makes the zone undeterminable: the batch is dropped with
// a warning. A rule that has been deactivated since dispatch still
// ingests — the webhook reached us, and silently dropping would be lossy.
func (o *Orchestrator) HandleWebhook(ctx context.Context, externalRuleID string, raws [][]byte) (IngestResult, error) {
	if len(raws) == 0 {
		return IngestResult{}, nil
	}

	if externalRuleID == "" {
		o.logger.Warn().Int("items", len(raws)).Msg("webhook without rule id, items dropped")
		return IngestResult{Received: len(raws), Errors: len(raws)}, nil
	}

	r, err := o.rules.ResolveByExternalID(ctx, externalRuleID)
	if err != nil {
		o.logger.Warn().
			Str("external_rule_id", externalRuleID).
			Int("items", len(raws)).
			Msg("webhook for unknown rule, items dropped")
		return IngestResult{Received: len(raws), Errors: len(raws)}, nil
	}
	if !r.IsActive {
		o.logger.Info().
			Str("rule_id", r.ID.String()).
			Msg("webhook for deactivated rule, ingesting anyway")
	}

	rc := RequestContext{ZoneID: r.ZoneID, RuleID: r.ID}
	result := o.ingestBatch(ctx, rc, o.push, raws)

	if result.Inserted > 0 {
		if err := o.rules.RecordPoll(ctx, r.ID, result.Inserted); err != nil {
			o.logger.Warn().Err(err).Str("rule_id", r.ID.String()).Msg("rule stats update failed")
		}
	}
	o.scheduleIngestJobs(ctx, r.ZoneID, result.InsertedIDs)

	o.logger.Info().
		Str("rule_id", r.ID.String()).
		Int("received", result.Received).
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Int("errors", result.Errors).
		Msg("webhook batch ingested")
	return result, nil
}

// RecoverInbox replays webhook bodies that were staged but never confirmed
// (a crash or database outage mid-ingest). Called once at startup before
// the HTTP server begins accepting new traffic.
func (o *Orchestrator) RecoverInbox(ctx context.Context) error {
	if o.inbox == nil {
		return nil
	}

	replayed, failed, err := o.inbox.Replay(ctx, func(ctx context.Context, e inbox.Entry) error {
		raws, perr := o.push.ParseWebhook(e.Body)
		if perr != nil {
			// Confirmed by returning nil: a body that cannot parse now
			// will not parse later either.
			o.logger.Warn().Err(perr).Str("entry_id", e.ID).Msg("staged body unparseable, dropping")
			return nil
		}
		_, herr := o.HandleWebhook(ctx, e.RuleExternalID, raws)
		return herr
	})
	if err != nil {
		return fmt.Errorf("orchestrator: inbox replay: %w", err)
	}
	if replayed > 0 || failed > 0 {
		o.logger.Info().Int("replayed", replayed).Int("failed", failed).Msg("inbox recovery complete")
	}
	return nil
}
