// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package news implements the rule-driven news poll adapter: a single
// query-object POST endpoint, no webhook, no per-item engagement counters
// worth tracking beyond what the source reports at fetch time.
package news

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

// Adapter implements provider.PullAdapter for the news source. It has no
// meaningful FetchCounters: articles don't carry live engagement, so
// refresh ticks for news items always report ErrItemNotFound, which the
// tracker treats as a signal to stop tracking.
type Adapter struct {
	cfg    config.NewsProviderConfig
	client *provider.ResilientClient
}

// New builds a news adapter with its own resilient HTTP client.
func New(cfg config.NewsProviderConfig, shared config.ProviderConfig) *Adapter {
	return &Adapter{cfg: cfg, client: provider.NewResilientClient("news", shared)}
}

func (a *Adapter) Tag() models.Provider { return models.ProviderNews }

type rawArticle struct {
	ID          string    `json:"id"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	Lang        string    `json:"lang,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
	Tags        []string  `json:"tags,omitempty"`
	Source      rawSource `json:"source"`
}

type rawSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParseItem maps a raw article payload into a CanonicalItem. The article
// body text used for entity extraction is "headline. summary" so that
// any inline hashtag-style tags the source embeds are still picked up;
// explicit tags are appended as hashtag entities too.
func (a *Adapter) ParseItem(raw []byte) (models.CanonicalItem, error) {
	var art rawArticle
	if err := json.Unmarshal(raw, &art); err != nil {
		return models.CanonicalItem{}, &provider.ParseError{Provider: models.ProviderNews, Reason: err.Error(), Raw: raw}
	}
	if art.ID == "" || art.Source.ID == "" {
		return models.CanonicalItem{}, &provider.ParseError{Provider: models.ProviderNews, Reason: "missing id or source.id", Raw: raw}
	}

	text := art.Headline
	if art.Summary != "" {
		text = art.Headline + ". " + art.Summary
	}

	entities := provider.ExtractEntities(text)
	for _, tag := range art.Tags {
		entities = append(entities, models.CanonicalEntity{Kind: models.EntityKindHashtag, Value: tag})
	}

	item := models.CanonicalItem{
		Provider:        models.ProviderNews,
		ProviderItemID:  art.ID,
		Text:            text,
		CreatedAtSource: art.PublishedAt,
		Counters:        models.Counters{},
		HasLinks:        art.URL != "" || provider.HasLinks(text),
		RawPayload:      raw,
		Entities:        entities,
		Author: models.CanonicalAuthor{
			Provider:       models.ProviderNews,
			ProviderUserID: art.Source.ID,
			Handle:         art.Source.ID,
			DisplayName:    art.Source.Name,
			IncrementItems: 1,
		},
	}
	if art.Lang != "" {
		item.Language = &art.Lang
	}
	return item, nil
}

// Search issues the provider's single query-object POST endpoint,
// capped at 100 items per fetch like every other pull adapter; the
// registry additionally enforces a minimum 15-minute poll interval for
// news rules.
func (a *Adapter) Search(ctx context.Context, querySpec string, cursor *string, pageSize int) ([][]byte, *string, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	reqBody := map[string]any{"query": querySpec, "limit": pageSize}
	if cursor != nil {
		reqBody["page_token"] = *cursor
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/articles/search", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Articles  []json.RawMessage `json:"articles"`
		PageToken *string           `json:"page_token,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("decode article search response: %w", err)
	}

	items := make([][]byte, len(out.Articles))
	for i, m := range out.Articles {
		items[i] = m
	}
	return items, out.PageToken, nil
}

// FetchCounters is a no-op source: news items carry no live engagement
// counters to refresh, so this always reports the item as gone, letting
// the tracker mark it cold on its first refresh tick without appending a
// snapshot.
func (a *Adapter) FetchCounters(ctx context.Context, providerItemID string) (models.Counters, error) {
	return models.Counters{}, provider.ErrItemNotFound
}

// Client exposes the adapter's resilient HTTP client for health reporting.
func (a *Adapter) Client() *provider.ResilientClient { return a.client }
