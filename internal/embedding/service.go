// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package embedding

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/metrics"
	"github.com/lkmcompany/gorgone/internal/models"
)

// maxBatchSize is the hard ceiling on texts per embedding request,
// regardless of configuration.
const maxBatchSize = 96

// Result summarizes one EnsureEmbeddings pass.
type Result struct {
	Total             int     `json:"total"`
	AlreadyVectorized int     `json:"already_vectorized"`
	NewlyVectorized   int     `json:"newly_vectorized"`
	Failed            int     `json:"failed"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
}

// Service is the embedding-cache write path. Failures are per-item and
// never abort the batch; repeated calls over the same items are no-ops.
type Service struct {
	db        *database.DB
	embedder  Embedder
	batchSize int
	logger    zerolog.Logger
}

// NewService builds the embedding service. batchSize is clamped to
// [1, 96].
func NewService(db *database.DB, embedder Embedder, batchSize int, logger zerolog.Logger) *Service {
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	return &Service{
		db:        db,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "embedding").Logger(),
	}
}

// pendingItem is an item that needs a fresh embedding request.
type pendingItem struct {
	target database.VectorizeTarget
	hash   string
	text   string
}

// EnsureEmbeddings guarantees every listed item carries a vector: items
// already vectorized are skipped, cache hits copy the cached vector onto
// the item, and only true misses reach the embedding provider, batched.
func (s *Service) EnsureEmbeddings(ctx context.Context, itemIDs []uuid.UUID) (Result, error) {
	targets, err := s.db.ListVectorizeTargets(ctx, itemIDs)
	if err != nil {
		return Result{}, fmt.Errorf("embedding: load targets: %w", err)
	}

	result := Result{Total: len(targets)}
	var pending []pendingItem
	cacheLookups := 0
	cacheHits := 0

	for _, t := range targets {
		if t.Vectorized {
			result.AlreadyVectorized++
			continue
		}

		hash := ContentHash(t.Text, t.AuthorHandle, t.Hashtags)
		cacheLookups++
		vector, err := s.db.GetEmbedding(ctx, hash)
		if err != nil {
			return result, fmt.Errorf("embedding: cache lookup: %w", err)
		}
		if vector != nil {
			cacheHits++
			metrics.EmbeddingCacheHitsTotal.Inc()
			if err := s.db.MarkItemVectorized(ctx, t.ItemID, vector); err != nil {
				return result, fmt.Errorf("embedding: copy cached vector: %w", err)
			}
			result.NewlyVectorized++
			continue
		}

		metrics.EmbeddingCacheMissesTotal.Inc()
		pending = append(pending, pendingItem{
			target: t,
			hash:   hash,
			text:   EmbeddingText(t.Text, t.AuthorHandle, t.Hashtags),
		})
	}

	for start := 0; start < len(pending); start += s.batchSize {
		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		s.embedBatch(ctx, pending[start:end], &result)
	}

	if cacheLookups > 0 {
		result.CacheHitRate = float64(cacheHits) / float64(cacheLookups)
	}
	return result, nil
}

// embedBatch requests one batch of vectors and persists them. A failed
// request fails every item in the batch, counted per item; it never aborts
// the overall pass.
func (s *Service) embedBatch(ctx context.Context, batch []pendingItem, result *Result) {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		s.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("embedding request failed")
		result.Failed += len(batch)
		return
	}

	for i, p := range batch {
		if err := s.db.PutEmbedding(ctx, models.EmbeddingCache{
			ContentHash: p.hash,
			Vector:      vectors[i],
			ModelID:     s.embedder.ModelID(),
		}); err != nil {
			s.logger.Warn().Err(err).Str("item_id", p.target.ItemID.String()).Msg("cache insert failed")
			result.Failed++
			continue
		}
		if err := s.db.MarkItemVectorized(ctx, p.target.ItemID, vectors[i]); err != nil {
			s.logger.Warn().Err(err).Str("item_id", p.target.ItemID.String()).Msg("mark vectorized failed")
			result.Failed++
			continue
		}
		result.NewlyVectorized++
	}
}
