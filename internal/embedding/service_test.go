// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/models"
)

func TestContentHashDeterministicAndOrderInsensitive(t *testing.T) {
	a := ContentHash("Hello  World", "Ada", []string{"AI", "golang"})
	b := ContentHash("hello world", "ada", []string{"golang", "ai"})
	if a != b {
		t.Errorf("hash not normalized: %s vs %s", a, b)
	}
	if a == ContentHash("hello world", "ada", []string{"golang"}) {
		t.Error("different hashtag sets should not collide")
	}
	if a == ContentHash("hello world", "lovelace", []string{"ai", "golang"}) {
		t.Error("different authors should not collide")
	}
}

type fakeEmbedder struct {
	calls  int
	texts  [][]string
	failAt int // 1-based call index to fail at; 0 = never
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.texts = append(f.texts, texts)
	if f.failAt == f.calls {
		return nil, context.DeadlineExceeded
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1, 2}
	}
	return out, nil
}

func (f *fakeEmbedder) ModelID() string { return "test-model" }

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedItem(t *testing.T, db *database.DB, text string, tags []string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	authorID, err := db.UpsertAuthor(ctx, models.CanonicalAuthor{
		Provider:       models.ProviderTweet,
		ProviderUserID: "U-" + uuid.NewString(),
		Handle:         "writer",
		IncrementItems: 1,
	})
	if err != nil {
		t.Fatalf("upsert author: %v", err)
	}

	entities := make([]models.CanonicalEntity, len(tags))
	for i, tag := range tags {
		entities[i] = models.CanonicalEntity{Kind: models.EntityKindHashtag, Value: tag}
	}
	res, err := db.InsertItemIfAbsent(ctx, uuid.New(), models.CanonicalItem{
		Provider:        models.ProviderTweet,
		ProviderItemID:  "T-" + uuid.NewString(),
		Text:            text,
		CreatedAtSource: time.Now().Add(-time.Hour),
		Entities:        entities,
	}, &authorID)
	if err != nil {
		t.Fatalf("insert item: %v", err)
	}
	return res.ID
}

func TestEnsureEmbeddingsCacheHitSkipsProvider(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := seedItem(t, db, "first post about ai", []string{"ai"})
	b := seedItem(t, db, "second post about go", []string{"golang"})
	c := seedItem(t, db, "third post about ducks", nil)

	// Pre-populate the cache with b's content hash.
	bHash := ContentHash("second post about go", "writer", []string{"golang"})
	if err := db.PutEmbedding(ctx, models.EmbeddingCache{
		ContentHash: bHash,
		Vector:      []float32{9, 9, 9},
		ModelID:     "test-model",
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	fake := &fakeEmbedder{}
	svc := NewService(db, fake, 96, zerolog.Nop())

	result, err := svc.EnsureEmbeddings(ctx, []uuid.UUID{a, b, c})
	if err != nil {
		t.Fatalf("ensure embeddings: %v", err)
	}

	if result.Total != 3 || result.NewlyVectorized != 3 || result.Failed != 0 {
		t.Errorf("result = %+v, want total=3 newly=3 failed=0", result)
	}
	if result.CacheHitRate < 1.0/3.0 {
		t.Errorf("cache hit rate = %f, want >= 1/3", result.CacheHitRate)
	}
	// Only a and c reach the provider.
	if fake.calls != 1 || len(fake.texts[0]) != 2 {
		t.Errorf("embedder calls = %d texts = %v, want one call with 2 texts", fake.calls, fake.texts)
	}
}

func TestEnsureEmbeddingsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	id := seedItem(t, db, "only once", []string{"once"})

	fake := &fakeEmbedder{}
	svc := NewService(db, fake, 96, zerolog.Nop())

	first, err := svc.EnsureEmbeddings(ctx, []uuid.UUID{id})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.NewlyVectorized != 1 {
		t.Fatalf("first pass = %+v, want newly=1", first)
	}

	second, err := svc.EnsureEmbeddings(ctx, []uuid.UUID{id})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.NewlyVectorized != 0 || second.AlreadyVectorized != 1 {
		t.Errorf("second pass = %+v, want newly=0 already=1", second)
	}
	if fake.calls != 1 {
		t.Errorf("embedder called %d times, want 1", fake.calls)
	}
}

func TestEnsureEmbeddingsProviderFailureIsPerBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ids := []uuid.UUID{
		seedItem(t, db, "batch one item", nil),
		seedItem(t, db, "batch two item", nil),
	}

	fake := &fakeEmbedder{failAt: 1}
	svc := NewService(db, fake, 1, zerolog.Nop()) // one item per batch

	result, err := svc.EnsureEmbeddings(ctx, ids)
	if err != nil {
		t.Fatalf("ensure embeddings: %v", err)
	}
	if result.Failed != 1 || result.NewlyVectorized != 1 {
		t.Errorf("result = %+v, want failed=1 newly=1", result)
	}
}
