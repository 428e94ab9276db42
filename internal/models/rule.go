// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package models

import (
	"time"

	"github.com/google/uuid"
)

// Rule is a per-zone monitoring specification that yields a stream of items.
// Rules whose kind targets the push provider mirror their lifecycle there;
// ExternalRuleID is set iff such a mirror exists.
type Rule struct {
	ID                  uuid.UUID  `json:"id"`
	ZoneID              uuid.UUID  `json:"zone_id"`
	Name                string     `json:"name"`
	Kind                RuleKind   `json:"kind"`
	QuerySpec           string     `json:"query_spec"`
	IntervalSeconds     int        `json:"interval_seconds"`
	IsActive            bool       `json:"is_active"`
	ExternalRuleID      *string    `json:"external_rule_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	LastPolledAt        *time.Time `json:"last_polled_at,omitempty"`
	TotalItemsCollected int64      `json:"total_items_collected"`
	LastItemCount       int        `json:"last_item_count"`
}

// RulePatch carries the mutable subset of a Rule for partial updates.
// Nil fields are left unchanged.
type RulePatch struct {
	Name            *string
	QuerySpec       *string
	IntervalSeconds *int
	IsActive        *bool
}

// IsPushMirrored reports whether this rule kind is mirrored to the push
// provider's subscription API rather than driven by a polling adapter.
func (r Rule) IsPushMirrored() bool {
	return r.Kind.Provider() == ProviderTweet
}

// IntervalFloor returns the minimum interval_seconds accepted for a rule of
// this kind, per provider-specific floors (push: 60s, news: 15min, video:
// one of {60, 180, 360} minutes).
func (k RuleKind) IntervalFloor() int {
	switch k.Provider() {
	case ProviderNews:
		return 15 * 60
	case ProviderVideo:
		return 60 * 60
	default:
		return 60
	}
}

// VideoIntervalSteps are the only interval_seconds values a video rule
// may use.
var VideoIntervalSteps = []int{60 * 60, 180 * 60, 360 * 60}

// ValidInterval reports whether seconds is an acceptable interval for this
// rule kind: at least IntervalFloor, and for video rules exactly one of
// VideoIntervalSteps.
func (k RuleKind) ValidInterval(seconds int) bool {
	if k.Provider() != ProviderVideo {
		return seconds >= k.IntervalFloor()
	}
	for _, step := range VideoIntervalSteps {
		if seconds == step {
			return true
		}
	}
	return false
}
