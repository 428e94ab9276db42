// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package tweet

import (
	"errors"
	"testing"
	"time"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/provider"
)

func newTestAdapter() *Adapter {
	return New(config.TweetProviderConfig{WebhookSecret: "s3cret"}, config.ProviderConfig{
		RequestTimeout:     time.Second,
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	})
}

func TestParseItemMapsFieldsAndEntities(t *testing.T) {
	a := newTestAdapter()
	raw := []byte(`{
		"id": "T1",
		"text": "hello #AI and @ada https://example.com",
		"lang": "en",
		"created_at": "2026-07-31T12:00:00Z",
		"user": {"id": "U1", "handle": "Ada", "name": "Ada L.", "verified": true, "followers_count": 42},
		"public_metrics": {"view_count": 100, "like_count": 5, "retweet_count": 2, "reply_count": 1, "quote_count": 1, "bookmark_count": 3}
	}`)

	item, err := a.ParseItem(raw)
	if err != nil {
		t.Fatalf("parse item: %v", err)
	}
	if item.Provider != models.ProviderTweet || item.ProviderItemID != "T1" {
		t.Errorf("identity = %s/%s, want tweet/T1", item.Provider, item.ProviderItemID)
	}
	if item.Counters.View != 100 || item.Counters.Like != 5 || item.Counters.Share != 2 ||
		item.Counters.Comment != 1 || item.Counters.Quote != 1 || item.Counters.Bookmark != 3 {
		t.Errorf("counters = %+v", item.Counters)
	}
	if !item.HasLinks {
		t.Error("HasLinks = false, want true")
	}
	if item.Language == nil || *item.Language != "en" {
		t.Errorf("language = %v, want en", item.Language)
	}

	var hashtags, mentions int
	for _, e := range item.Entities {
		switch e.Kind {
		case models.EntityKindHashtag:
			hashtags++
		case models.EntityKindMention:
			mentions++
		}
	}
	if hashtags != 1 || mentions != 1 {
		t.Errorf("entities = %d hashtags %d mentions, want 1/1", hashtags, mentions)
	}

	if item.Author.ProviderUserID != "U1" || item.Author.Handle != "Ada" || !item.Author.Verified {
		t.Errorf("author = %+v", item.Author)
	}
}

func TestParseItemRejectsMissingIdentity(t *testing.T) {
	a := newTestAdapter()
	var parseErr *provider.ParseError

	_, err := a.ParseItem([]byte(`{"text": "no id", "user": {"id": "U1"}}`))
	if !errors.As(err, &parseErr) {
		t.Errorf("missing id: got %v, want ParseError", err)
	}

	_, err = a.ParseItem([]byte(`not json`))
	if !errors.As(err, &parseErr) {
		t.Errorf("malformed json: got %v, want ParseError", err)
	}
}

func TestParseWebhookTriesShapesInOrder(t *testing.T) {
	a := newTestAdapter()
	tweetJSON := `{"id":"T1","text":"x","user":{"id":"U1"}}`

	cases := []struct {
		name string
		body string
		want int
	}{
		{"array", `[` + tweetJSON + `,` + tweetJSON + `]`, 2},
		{"tweets", `{"tweets":[` + tweetJSON + `]}`, 1},
		{"results", `{"results":[` + tweetJSON + `]}`, 1},
		{"single", `{"tweet":` + tweetJSON + `}`, 1},
		{"empty body", ``, 0},
		{"empty tweets", `{"tweets":[]}`, 0},
	}
	for _, c := range cases {
		got, err := a.ParseWebhook([]byte(c.body))
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
			continue
		}
		if len(got) != c.want {
			t.Errorf("%s: got %d items, want %d", c.name, len(got), c.want)
		}
	}

	var parseErr *provider.ParseError
	if _, err := a.ParseWebhook([]byte(`{"unknown_key": 1}`)); !errors.As(err, &parseErr) {
		t.Errorf("unknown shape: got %v, want ParseError", err)
	}
}

func TestVerifyWebhookSecret(t *testing.T) {
	a := newTestAdapter()
	if !a.VerifyWebhookSecret("s3cret") {
		t.Error("correct secret rejected")
	}
	if a.VerifyWebhookSecret("wrong") || a.VerifyWebhookSecret("") {
		t.Error("wrong or empty secret accepted")
	}
}
