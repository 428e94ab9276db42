// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package tweet implements the push-webhook provider adapter: parsing
// inbound webhook payloads, mirroring rule lifecycle to the provider's
// remote subscription API, and backfilling via its search endpoint.
package tweet

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/provider"
)

// Adapter implements provider.PushAdapter for the tweet-like push source.
type Adapter struct {
	cfg    config.TweetProviderConfig
	client *provider.ResilientClient
}

// New builds a tweet adapter with its own resilient HTTP client
// (circuit breaker + rate limiter), constructed once at startup.
func New(cfg config.TweetProviderConfig, shared config.ProviderConfig) *Adapter {
	return &Adapter{cfg: cfg, client: provider.NewResilientClient("tweet", shared)}
}

func (a *Adapter) Tag() models.Provider { return models.ProviderTweet }

// rawTweet is the provider's per-item wire shape.
type rawTweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ReplyToID *string   `json:"reply_to_id,omitempty"`
	User      rawUser   `json:"user"`
	Metrics   struct {
		Views    int64 `json:"view_count"`
		Likes    int64 `json:"like_count"`
		Retweets int64 `json:"retweet_count"`
		Replies  int64 `json:"reply_count"`
		Quotes   int64 `json:"quote_count"`
		Bookmarks int64 `json:"bookmark_count"`
	} `json:"public_metrics"`
}

type rawUser struct {
	ID         string `json:"id"`
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	Verified   bool   `json:"verified"`
	Followers  int64  `json:"followers_count"`
	Following  int64  `json:"following_count"`
	Location   string `json:"location,omitempty"`
}

// ParseItem maps a single raw tweet payload into a CanonicalItem,
// extracting entities from its text.
func (a *Adapter) ParseItem(raw []byte) (models.CanonicalItem, error) {
	var t rawTweet
	if err := json.Unmarshal(raw, &t); err != nil {
		return models.CanonicalItem{}, &provider.ParseError{Provider: models.ProviderTweet, Reason: err.Error(), Raw: raw}
	}
	if t.ID == "" || t.User.ID == "" {
		return models.CanonicalItem{}, &provider.ParseError{Provider: models.ProviderTweet, Reason: "missing id or user.id", Raw: raw}
	}

	item := models.CanonicalItem{
		Provider:        models.ProviderTweet,
		ProviderItemID:  t.ID,
		Text:            t.Text,
		CreatedAtSource: t.CreatedAt,
		ReplyToSourceID: t.ReplyToID,
		Counters: models.Counters{
			View:     t.Metrics.Views,
			Like:     t.Metrics.Likes,
			Share:    t.Metrics.Retweets,
			Comment:  t.Metrics.Replies,
			Quote:    t.Metrics.Quotes,
			Bookmark: t.Metrics.Bookmarks,
		},
		HasLinks:   provider.HasLinks(t.Text),
		RawPayload: raw,
		Entities:   provider.ExtractEntities(t.Text),
		Author:     a.parseAuthor(t.User),
	}
	if t.Lang != "" {
		item.Language = &t.Lang
	}
	return item, nil
}

// parseAuthor maps the embedded user object into a CanonicalAuthor,
// kept separate from ParseItem so author-only refreshes can reuse it.
func (a *Adapter) parseAuthor(u rawUser) models.CanonicalAuthor {
	ca := models.CanonicalAuthor{
		Provider:       models.ProviderTweet,
		ProviderUserID: u.ID,
		Handle:         u.Handle,
		DisplayName:    u.Name,
		Verified:       u.Verified,
		FollowerCount:  u.Followers,
		FollowingCount: u.Following,
		IncrementItems: 1,
	}
	if u.Location != "" {
		ca.Location = &u.Location
	}
	return ca
}

// ParseWebhook tries each accepted payload shape in a fixed
// order: array, {tweets}, {results}, {tweet}. Anything else is a ParseError.
func (a *Adapter) ParseWebhook(body []byte) ([][]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		// Empty/test payloads are acknowledged with success, never an error.
		return nil, nil
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(trimmed, &asArray); err == nil {
		return rawMessagesToBytes(asArray), nil
	}

	var tweetsShape struct {
		Tweets []json.RawMessage `json:"tweets"`
	}
	if err := json.Unmarshal(trimmed, &tweetsShape); err == nil && tweetsShape.Tweets != nil {
		return rawMessagesToBytes(tweetsShape.Tweets), nil
	}

	var resultsShape struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &resultsShape); err == nil && resultsShape.Results != nil {
		return rawMessagesToBytes(resultsShape.Results), nil
	}

	var singleShape struct {
		Tweet json.RawMessage `json:"tweet"`
	}
	if err := json.Unmarshal(trimmed, &singleShape); err == nil && singleShape.Tweet != nil {
		return [][]byte{singleShape.Tweet}, nil
	}

	return nil, &provider.ParseError{Provider: models.ProviderTweet, Reason: "unrecognized webhook payload shape", Raw: body}
}

func rawMessagesToBytes(msgs []json.RawMessage) [][]byte {
	out := make([][]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m
	}
	return out
}

// Search backs on-demand backfill via the provider's /search endpoint,
// capped at 100 items per page.
func (a *Adapter) Search(ctx context.Context, querySpec string, cursor *string, pageSize int) ([][]byte, *string, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	reqBody := map[string]any{"query": querySpec, "max_results": pageSize}
	if cursor != nil {
		reqBody["next_token"] = *cursor
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.BearerToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Results   []json.RawMessage `json:"results"`
		NextToken *string           `json:"next_token,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("decode search response: %w", err)
	}
	return rawMessagesToBytes(out.Results), out.NextToken, nil
}

// FetchCounters re-fetches a single tweet's live counters for a tracker
// refresh tick.
func (a *Adapter) FetchCounters(ctx context.Context, providerItemID string) (models.Counters, error) {
	body, err := a.client.Get(ctx, a.cfg.BaseURL+"/tweets/"+providerItemID)
	if err != nil {
		if err == provider.ErrItemNotFound {
			return models.Counters{}, provider.ErrItemNotFound
		}
		return models.Counters{}, err
	}
	var t rawTweet
	if err := json.Unmarshal(body, &t); err != nil {
		return models.Counters{}, fmt.Errorf("decode tweet: %w", err)
	}
	return models.Counters{
		View: t.Metrics.Views, Like: t.Metrics.Likes, Share: t.Metrics.Retweets,
		Comment: t.Metrics.Replies, Quote: t.Metrics.Quotes, Bookmark: t.Metrics.Bookmarks,
	}, nil
}

// CreateRemoteRule mirrors a rule's creation to POST /rules.
func (a *Adapter) CreateRemoteRule(ctx context.Context, name, querySpec string) (string, error) {
	payload, err := json.Marshal(map[string]string{"tag": name, "value": querySpec})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/rules", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.BearerToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create-rule response: %w", err)
	}
	return out.ID, nil
}

// UpdateRemoteRule mirrors a query/interval change and the rule's active
// flag via PATCH /rules/:id.
func (a *Adapter) UpdateRemoteRule(ctx context.Context, externalRuleID, querySpec string, intervalSeconds int, active bool) error {
	payload, err := json.Marshal(map[string]any{"value": querySpec, "interval_seconds": intervalSeconds, "is_active": active})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, a.cfg.BaseURL+"/rules/"+externalRuleID, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.BearerToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

// DeleteRemoteRule mirrors a rule delete via DELETE /rules/:id. Failures
// are the caller's (internal/rule) concern to log as a warning; local
// delete proceeds regardless.
func (a *Adapter) DeleteRemoteRule(ctx context.Context, externalRuleID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.cfg.BaseURL+"/rules/"+externalRuleID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.BearerToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return nil
}

// VerifyWebhookSecret checks the X-API-Key header against the configured
// shared secret.
func (a *Adapter) VerifyWebhookSecret(headerValue string) bool {
	return headerValue != "" && headerValue == a.cfg.WebhookSecret
}

// Client exposes the adapter's resilient HTTP client for health reporting.
func (a *Adapter) Client() *provider.ResilientClient { return a.client }
