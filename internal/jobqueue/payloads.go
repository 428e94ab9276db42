// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package jobqueue

import (
	"fmt"

	"github.com/google/uuid"
)

// VectorizePayload asks the embedding service to ensure embeddings for a
// batch of freshly ingested items.
type VectorizePayload struct {
	ItemIDs []uuid.UUID `json:"item_ids"`
	ZoneID  uuid.UUID   `json:"zone_id"`
}

// RefreshEngagementPayload is the first-tick engagement refresh scheduled
// at ingest time.
type RefreshEngagementPayload struct {
	ItemID uuid.UUID `json:"item_id"`
}

// SnapshotItemPayload is a recurring per-item snapshot tick.
type SnapshotItemPayload struct {
	ItemID uuid.UUID `json:"item_id"`
}

// PollRulePayload triggers one poll tick for a pull-provider rule.
type PollRulePayload struct {
	RuleID uuid.UUID `json:"rule_id"`
}

// BackfillRulePayload runs (or resumes) an on-demand backfill for a rule
// until RequestedCount items have been collected or the provider returns an
// empty page.
type BackfillRulePayload struct {
	RuleID         uuid.UUID `json:"rule_id"`
	RequestedCount int       `json:"requested_count"`
}

// SnapshotKey serializes snapshot ticks per item: the scheduler guarantees
// a single in-flight snapshot_item per item ID.
func SnapshotKey(itemID uuid.UUID) string {
	return fmt.Sprintf("snapshot:%s", itemID)
}

// RefreshKey collapses duplicate first-tick refresh enqueues for one item.
func RefreshKey(itemID uuid.UUID) string {
	return fmt.Sprintf("refresh_engagement:%s", itemID)
}

// PollRuleKey serializes poll ticks per rule; polls stay parallel across
// rules.
func PollRuleKey(ruleID uuid.UUID) string {
	return fmt.Sprintf("poll_rule:%s", ruleID)
}

// BackfillKey serializes backfill runs per rule.
func BackfillKey(ruleID uuid.UUID) string {
	return fmt.Sprintf("backfill_rule:%s", ruleID)
}
