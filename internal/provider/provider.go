// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package provider defines the shared adapter contract implemented by each
// of the three external content sources (internal/provider/tweet,
// internal/provider/video, internal/provider/news). Adapters are pure
// mapping functions plus a single outbound HTTP call for pull providers;
// they never touch the database.
package provider

import (
	"context"
	"fmt"

	"github.com/lkmcompany/gorgone/internal/models"
)

// ParseError reports a single malformed item in an otherwise-valid batch.
// The ingestion orchestrator counts these and never aborts a batch because
// of one.
type ParseError struct {
	Provider models.Provider
	Reason   string
	Raw      []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse error: %s", e.Provider, e.Reason)
}

// Adapter is implemented by each provider package. ParseItem (which also
// maps the item's author) is pure and deterministic: no zone/rule
// dependency, no I/O.
type Adapter interface {
	// Tag is the provider's uniqueness discriminant.
	Tag() models.Provider

	// ParseItem maps one raw provider payload into a CanonicalItem.
	ParseItem(raw []byte) (models.CanonicalItem, error)
}

// PullAdapter is implemented by adapters backing a polling provider
// (video, news). Search performs the single bounded HTTP call; adapters
// cap pageSize at 100 internally regardless of the caller's request.
type PullAdapter interface {
	Adapter

	// Search fetches one page of items matching querySpec. cursor is
	// opaque and provider-specific; a nil nextCursor means no more pages.
	Search(ctx context.Context, querySpec string, cursor *string, pageSize int) (items [][]byte, nextCursor *string, err error)

	// FetchCounters re-fetches live counters for a single item during a
	// tracker refresh tick. ErrItemNotFound signals
	// the provider no longer has this item (tier -> cold).
	FetchCounters(ctx context.Context, providerItemID string) (models.Counters, error)
}

// PushAdapter is implemented by the tweet adapter: it additionally mirrors
// rule lifecycle to the provider's remote subscription API.
type PushAdapter interface {
	Adapter

	// ParseWebhook tries each tagged payload shape in the fixed order
	// tried: array, {tweets}, {results}, {tweet}.
	ParseWebhook(body []byte) ([][]byte, error)

	// VerifyWebhookSecret checks an inbound webhook's shared-secret header.
	VerifyWebhookSecret(headerValue string) bool

	CreateRemoteRule(ctx context.Context, name, querySpec string) (externalRuleID string, err error)
	// UpdateRemoteRule mirrors query/interval changes and the rule's
	// active flag to the provider's subscription, so a local toggle takes
	// effect remotely.
	UpdateRemoteRule(ctx context.Context, externalRuleID, querySpec string, intervalSeconds int, active bool) error
	DeleteRemoteRule(ctx context.Context, externalRuleID string) error

	// Search backs on-demand backfill for the push provider.
	Search(ctx context.Context, querySpec string, cursor *string, pageSize int) (items [][]byte, nextCursor *string, err error)
	FetchCounters(ctx context.Context, providerItemID string) (models.Counters, error)
}

// ErrItemNotFound is returned by FetchCounters when the provider reports
// the item no longer exists.
var ErrItemNotFound = fmt.Errorf("provider: item not found")
