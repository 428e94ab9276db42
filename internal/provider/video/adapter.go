// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package video implements the short-video poll-adapter:
// user timelines, single-video lookups, and keyword/hashtag/user search,
// driven entirely by rule poll ticks rather than a webhook.
package video

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/provider"
)

// Adapter implements provider.PullAdapter for the short-video source.
type Adapter struct {
	cfg    config.VideoProviderConfig
	client *provider.ResilientClient
}

// New builds a video adapter with its own resilient HTTP client.
func New(cfg config.VideoProviderConfig, shared config.ProviderConfig) *Adapter {
	return &Adapter{cfg: cfg, client: provider.NewResilientClient("video", shared)}
}

func (a *Adapter) Tag() models.Provider { return models.ProviderVideo }

type rawVideo struct {
	ID          string    `json:"id"`
	Caption     string    `json:"caption"`
	Lang        string    `json:"lang,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Author      rawAuthor `json:"author"`
	Stats       struct {
		Plays    int64 `json:"play_count"`
		Likes    int64 `json:"digg_count"`
		Comments int64 `json:"comment_count"`
		Shares   int64 `json:"share_count"`
		Collects int64 `json:"collect_count"`
	} `json:"stats"`
}

type rawAuthor struct {
	ID           string `json:"id"`
	UniqueID     string `json:"unique_id"`
	Nickname     string `json:"nickname"`
	Verified     bool   `json:"verified"`
	FollowerCnt  int64  `json:"follower_count"`
	FollowingCnt int64  `json:"following_count"`
	HeartCount   int64  `json:"heart_count"`
	VideoCount   int64  `json:"video_count"`
}

// ParseItem maps a raw video payload into a CanonicalItem.
func (a *Adapter) ParseItem(raw []byte) (models.CanonicalItem, error) {
	var v rawVideo
	if err := json.Unmarshal(raw, &v); err != nil {
		return models.CanonicalItem{}, &provider.ParseError{Provider: models.ProviderVideo, Reason: err.Error(), Raw: raw}
	}
	if v.ID == "" || v.Author.ID == "" {
		return models.CanonicalItem{}, &provider.ParseError{Provider: models.ProviderVideo, Reason: "missing id or author.id", Raw: raw}
	}

	item := models.CanonicalItem{
		Provider:        models.ProviderVideo,
		ProviderItemID:  v.ID,
		Text:            v.Caption,
		CreatedAtSource: v.PublishedAt,
		Counters: models.Counters{
			View:    v.Stats.Plays,
			Like:    v.Stats.Likes,
			Comment: v.Stats.Comments,
			Share:   v.Stats.Shares,
			Collect: v.Stats.Collects,
		},
		HasLinks:   provider.HasLinks(v.Caption),
		RawPayload: raw,
		Entities:   provider.ExtractEntities(v.Caption),
		Author:     a.parseAuthor(v.Author),
	}
	if v.Lang != "" {
		item.Language = &v.Lang
	}
	return item, nil
}

func (a *Adapter) parseAuthor(u rawAuthor) models.CanonicalAuthor {
	return models.CanonicalAuthor{
		Provider:       models.ProviderVideo,
		ProviderUserID: u.ID,
		Handle:         u.UniqueID,
		DisplayName:    u.Nickname,
		Verified:       u.Verified,
		FollowerCount:  u.FollowerCnt,
		FollowingCount: u.FollowingCnt,
		HeartCount:     u.HeartCount,
		PostCount:      u.VideoCount,
		IncrementItems: 1,
	}
}

// Search dispatches to the keyword/hashtag/user search variant implied by
// querySpec's prefix ("user:<handle>", "#tag", or a bare keyword query),
// capped at 100 items per page like every other pull adapter.
func (a *Adapter) Search(ctx context.Context, querySpec string, cursor *string, pageSize int) ([][]byte, *string, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	endpoint, params := a.resolveSearchEndpoint(querySpec)
	params.Set("count", fmt.Sprintf("%d", pageSize))
	if cursor != nil {
		params.Set("cursor", *cursor)
	}

	body, err := a.client.Get(ctx, a.cfg.BaseURL+endpoint+"?"+params.Encode())
	if err != nil {
		return nil, nil, err
	}

	var out struct {
		Items      []json.RawMessage `json:"items"`
		Cursor     string             `json:"cursor"`
		HasMore    bool               `json:"has_more"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([][]byte, len(out.Items))
	for i, m := range out.Items {
		items[i] = m
	}

	var nextCursor *string
	if out.HasMore && out.Cursor != "" {
		nextCursor = &out.Cursor
	}
	return items, nextCursor, nil
}

// resolveSearchEndpoint maps a rule's query spec prefix to a concrete
// provider endpoint: "user:<handle>" hits the user timeline, "#tag" hits
// hashtag search, anything else falls through to keyword search.
func (a *Adapter) resolveSearchEndpoint(querySpec string) (string, url.Values) {
	params := url.Values{}
	switch {
	case len(querySpec) > 5 && querySpec[:5] == "user:":
		params.Set("unique_id", querySpec[5:])
		return "/user/feed", params
	case len(querySpec) > 0 && querySpec[0] == '#':
		params.Set("hashtag", querySpec[1:])
		return "/hashtag/feed", params
	default:
		params.Set("keyword", querySpec)
		return "/search/feed", params
	}
}

// FetchCounters re-fetches a single video's live stats.
func (a *Adapter) FetchCounters(ctx context.Context, providerItemID string) (models.Counters, error) {
	body, err := a.client.Get(ctx, a.cfg.BaseURL+"/video/"+providerItemID)
	if err != nil {
		if err == provider.ErrItemNotFound {
			return models.Counters{}, provider.ErrItemNotFound
		}
		return models.Counters{}, err
	}
	var v rawVideo
	if err := json.Unmarshal(body, &v); err != nil {
		return models.Counters{}, fmt.Errorf("decode video: %w", err)
	}
	return models.Counters{
		View: v.Stats.Plays, Like: v.Stats.Likes, Comment: v.Stats.Comments,
		Share: v.Stats.Shares, Collect: v.Stats.Collects,
	}, nil
}

// Client exposes the adapter's resilient HTTP client for health reporting.
func (a *Adapter) Client() *provider.ResilientClient { return a.client }
