// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	"github.com/google/uuid"
	"github.com/lkmcompany/gorgone/internal/models"
)

// GetEmbedding looks up a cached vector by content hash. It returns
// (nil, nil) on a cache miss rather than an error, matching the
// "result variant over exception" pattern for the common case.
func (db *DB) GetEmbedding(ctx context.Context, contentHash string) ([]float32, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var raw []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT vector FROM embedding_cache WHERE content_hash = ?`, contentHash).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(raw), nil
}

// PutEmbedding inserts a vector keyed by content hash. Two concurrent
// insertions of the same hash collapse to one because content_hash is the
// primary key; the second writer's unique-violation is treated
// as a successful no-op.
func (db *DB) PutEmbedding(ctx context.Context, e models.EmbeddingCache) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO embedding_cache (content_hash, vector, model_id)
		VALUES (?, ?, ?)`, e.ContentHash, encodeVector(e.Vector), e.ModelID)
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	return err
}

// VectorizeTarget is the per-item content the embedding service hashes and
// embeds: normalized text, author handle, and the item's sorted hashtags.
type VectorizeTarget struct {
	ItemID       uuid.UUID
	Text         string
	AuthorHandle string
	Hashtags     []string
	Vectorized   bool
}

// ListVectorizeTargets loads the embedding inputs for a batch of items.
// Items that no longer exist are silently omitted; the caller treats them
// as already handled.
func (db *DB) ListVectorizeTargets(ctx context.Context, itemIDs []uuid.UUID) ([]VectorizeTarget, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	out := make([]VectorizeTarget, 0, len(itemIDs))
	for _, id := range itemIDs {
		var t VectorizeTarget
		t.ItemID = id
		var handle sql.NullString
		var vectorizedAt sql.NullTime
		err := db.conn.QueryRowContext(ctx, `
			SELECT i.text, a.handle, i.vectorized_at
			FROM items i LEFT JOIN authors a ON a.id = i.author_id
			WHERE i.id = ?`, id).Scan(&t.Text, &handle, &vectorizedAt)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		t.AuthorHandle = handle.String
		t.Vectorized = vectorizedAt.Valid

		rows, err := db.conn.QueryContext(ctx, `
			SELECT normalized_value FROM entities
			WHERE item_id = ? AND kind = ? ORDER BY normalized_value ASC`,
			id, string(models.EntityKindHashtag))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var tag string
			if err := rows.Scan(&tag); err != nil {
				rows.Close()
				return nil, err
			}
			t.Hashtags = append(t.Hashtags, tag)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		out = append(out, t)
	}
	return out, nil
}

// MarkItemVectorized copies a vector onto the item and stamps it done, the
// idempotency anchor for repeated vectorize calls.
func (db *DB) MarkItemVectorized(ctx context.Context, itemID uuid.UUID, vector []float32) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		UPDATE items SET vector = ?, vectorized_at = CURRENT_TIMESTAMP
		WHERE id = ?`, encodeVector(vector), itemID)
	return err
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}
