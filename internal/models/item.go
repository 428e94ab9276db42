// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package models

import (
	"time"

	"github.com/google/uuid"
)

// Counters holds the engagement metrics tracked uniformly across providers.
// A provider adapter that has no concept of a given metric (e.g. news
// articles have no "quote") simply leaves it zero.
type Counters struct {
	View     int64 `json:"view"`
	Like     int64 `json:"like"`
	Share    int64 `json:"share"`
	Comment  int64 `json:"comment"`
	Quote    int64 `json:"quote"`
	Bookmark int64 `json:"bookmark"`
	Collect  int64 `json:"collect"`
}

// Sub returns c - other, per metric, clamped to zero. Providers occasionally
// revise counters downward; negative deltas are never emitted.
func (c Counters) Sub(other Counters) Counters {
	return Counters{
		View:     clampNonNegative(c.View - other.View),
		Like:     clampNonNegative(c.Like - other.Like),
		Share:    clampNonNegative(c.Share - other.Share),
		Comment:  clampNonNegative(c.Comment - other.Comment),
		Quote:    clampNonNegative(c.Quote - other.Quote),
		Bookmark: clampNonNegative(c.Bookmark - other.Bookmark),
		Collect:  clampNonNegative(c.Collect - other.Collect),
	}
}

// Sum returns the sum of all metrics, used by the velocity calculation.
func (c Counters) Sum() int64 {
	return c.View + c.Like + c.Share + c.Comment + c.Quote + c.Bookmark + c.Collect
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// Predictions holds velocity-linear extrapolations for a subset of metrics,
// recomputed once a tracked item has at least two snapshots.
type Predictions struct {
	ModelTag   string                      `json:"model_tag"`
	Confidence float64                     `json:"confidence"`
	ComputedAt time.Time                   `json:"computed_at"`
	Metrics    map[string]MetricPrediction `json:"metrics"`
}

// MetricPrediction is the 1h/2h/3h extrapolation for a single counter.
type MetricPrediction struct {
	Current         int64   `json:"current"`
	VelocityPerHour float64 `json:"velocity_per_hour"`
	P1h             int64   `json:"p1h"`
	P2h             int64   `json:"p2h"`
	P3h             int64   `json:"p3h"`
}

// Item is a normalized unit of content: a tweet-like post, short video, or
// news article. Uniqueness is (Provider, ProviderItemID) globally.
type Item struct {
	ID              uuid.UUID    `json:"id"`
	ZoneID          uuid.UUID    `json:"zone_id"`
	Provider        Provider     `json:"provider"`
	ProviderItemID  string       `json:"provider_item_id"`
	AuthorID        *uuid.UUID   `json:"author_id,omitempty"`
	Text            string       `json:"text"`
	Language        *string      `json:"language,omitempty"`
	CreatedAtSource time.Time    `json:"created_at_source"`
	ReplyToItemID   *uuid.UUID   `json:"reply_to_item_id,omitempty"`
	Counters        Counters     `json:"counters"`
	HasLinks        bool         `json:"has_links"`
	RawPayload      []byte       `json:"raw_payload,omitempty"`
	Predictions     *Predictions `json:"predictions,omitempty"`
}

// Age returns the time elapsed since the item's source-reported creation
// time: age is always measured from created_at_source,
// never from ingest time.
func (i Item) Age(now time.Time) time.Duration {
	return now.Sub(i.CreatedAtSource)
}

// CanonicalItem is the adapter-produced, pre-persistence shape of an item.
type CanonicalItem struct {
	Provider        Provider
	ProviderItemID  string
	Author          CanonicalAuthor
	Text            string
	Language        *string
	CreatedAtSource time.Time
	ReplyToSourceID *string
	Counters        Counters
	HasLinks        bool
	RawPayload      []byte
	Entities        []CanonicalEntity
}

// Entity is a hashtag or mention extracted from an item's text.
type Entity struct {
	ItemID          uuid.UUID  `json:"item_id"`
	ZoneID          uuid.UUID  `json:"zone_id"`
	Kind            EntityKind `json:"kind"`
	Value           string     `json:"value"`
	NormalizedValue string     `json:"normalized_value"`
}

// CanonicalEntity is the adapter-produced shape of an extracted entity,
// prior to item-scoped deduplication by (Kind, NormalizedValue).
type CanonicalEntity struct {
	Kind  EntityKind
	Value string
}
