// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lkmcompany/gorgone/internal/models"
)

// InsertResult is the outcome of InsertItemIfAbsent: a duplicate is a
// normal result, not an error.
type InsertResult struct {
	ID       uuid.UUID
	Inserted bool
}

// InsertItemIfAbsent inserts a canonical item and its deduplicated entities
// in a single transaction, keyed by the global (provider, provider_item_id)
// unique constraint. If the item already exists, it returns the existing ID
// with Inserted=false and does not touch entities.
func (db *DB) InsertItemIfAbsent(ctx context.Context, zoneID uuid.UUID, item models.CanonicalItem, authorID *uuid.UUID) (InsertResult, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return InsertResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM items WHERE provider = ? AND provider_item_id = ?`,
		string(item.Provider), item.ProviderItemID).Scan(&existing)
	if err == nil {
		return InsertResult{ID: existing, Inserted: false}, tx.Commit()
	}
	if err != sql.ErrNoRows {
		return InsertResult{}, fmt.Errorf("lookup item: %w", err)
	}

	id := uuid.New()
	c := item.Counters
	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (
			id, zone_id, provider, provider_item_id, author_id, text, language,
			created_at_source, reply_to_item_id,
			counter_view, counter_like, counter_share, counter_comment,
			counter_quote, counter_bookmark, counter_collect,
			has_links, raw_payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, zoneID, string(item.Provider), item.ProviderItemID, nullableUUID(authorID), item.Text, item.Language,
		item.CreatedAtSource,
		c.View, c.Like, c.Share, c.Comment, c.Quote, c.Bookmark, c.Collect,
		item.HasLinks, item.RawPayload)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent insert of the same item; the
			// other transaction's commit makes this a normal duplicate.
			var raceID uuid.UUID
			if qerr := db.conn.QueryRowContext(ctx,
				`SELECT id FROM items WHERE provider = ? AND provider_item_id = ?`,
				string(item.Provider), item.ProviderItemID).Scan(&raceID); qerr == nil {
				return InsertResult{ID: raceID, Inserted: false}, nil
			}
		}
		return InsertResult{}, fmt.Errorf("insert item: %w", err)
	}

	seen := make(map[string]bool, len(item.Entities))
	for _, e := range item.Entities {
		normalized := normalizeEntityValue(e.Value)
		key := string(e.Kind) + ":" + normalized
		if seen[key] {
			continue
		}
		seen[key] = true
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entities (item_id, zone_id, kind, value, normalized_value)
			VALUES (?, ?, ?, ?, ?)`,
			id, zoneID, string(e.Kind), e.Value, normalized)
		if err != nil {
			return InsertResult{}, fmt.Errorf("insert entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return InsertResult{ID: id, Inserted: true}, nil
}

// UpdateItemCounters atomically replaces an item's live counters and
// returns the pre-image, so the caller (the engagement tracker) can compute
// deltas against a value that cannot have been superseded by a concurrent
// writer.
func (db *DB) UpdateItemCounters(ctx context.Context, itemID uuid.UUID, counters models.Counters) (models.Counters, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Counters{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev models.Counters
	err = tx.QueryRowContext(ctx, `
		SELECT counter_view, counter_like, counter_share, counter_comment,
			counter_quote, counter_bookmark, counter_collect
		FROM items WHERE id = ?`, itemID).Scan(
		&prev.View, &prev.Like, &prev.Share, &prev.Comment,
		&prev.Quote, &prev.Bookmark, &prev.Collect)
	if err != nil {
		return models.Counters{}, fmt.Errorf("read previous counters: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE items SET
			counter_view = ?, counter_like = ?, counter_share = ?, counter_comment = ?,
			counter_quote = ?, counter_bookmark = ?, counter_collect = ?
		WHERE id = ?`,
		counters.View, counters.Like, counters.Share, counters.Comment,
		counters.Quote, counters.Bookmark, counters.Collect, itemID)
	if err != nil {
		return models.Counters{}, fmt.Errorf("write counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Counters{}, fmt.Errorf("commit: %w", err)
	}
	return prev, nil
}

// GetItem loads a full item row by internal ID.
func (db *DB) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var item models.Item
	var authorID sql.NullString
	var predictionsJSON sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, zone_id, provider, provider_item_id, author_id, text, language,
			created_at_source, counter_view, counter_like, counter_share, counter_comment,
			counter_quote, counter_bookmark, counter_collect, has_links, raw_payload, predictions_json
		FROM items WHERE id = ?`, id).Scan(
		&item.ID, &item.ZoneID, &item.Provider, &item.ProviderItemID, &authorID, &item.Text, &item.Language,
		&item.CreatedAtSource, &item.Counters.View, &item.Counters.Like, &item.Counters.Share, &item.Counters.Comment,
		&item.Counters.Quote, &item.Counters.Bookmark, &item.Counters.Collect, &item.HasLinks, &item.RawPayload, &predictionsJSON)
	if err != nil {
		return nil, err
	}
	if authorID.Valid {
		u, perr := uuid.Parse(authorID.String)
		if perr == nil {
			item.AuthorID = &u
		}
	}
	return &item, nil
}

// WritePredictions persists the tracker's velocity-linear prediction blob
// for an item.
func (db *DB) WritePredictions(ctx context.Context, itemID uuid.UUID, predictionsJSON []byte) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE items SET predictions_json = ? WHERE id = ?`, string(predictionsJSON), itemID)
	return err
}

// GetItemProviderRef returns the (provider, provider_item_id) pair an
// adapter needs to re-fetch live counters for a refresh tick.
func (db *DB) GetItemProviderRef(ctx context.Context, itemID uuid.UUID) (models.Provider, string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	var provider models.Provider
	var providerItemID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT provider, provider_item_id FROM items WHERE id = ?`, itemID).Scan(&provider, &providerItemID)
	return provider, providerItemID, err
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

// normalizeEntityValue lowercases an extracted hashtag/mention for the
// (kind, normalized_value) dedup key.
func normalizeEntityValue(v string) string {
	return lowerHandle(v)
}
