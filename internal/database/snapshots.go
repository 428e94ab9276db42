// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lkmcompany/gorgone/internal/models"
)

// AppendSnapshot appends an append-only engagement snapshot. Callers must
// ensure snapshot_at is strictly greater than the item's previous
// snapshot; this holds because the tracker always passes time.Now() and
// the job scheduler serializes refreshes per item via idempotency key
// "snapshot:{itemID}".
func (db *DB) AppendSnapshot(ctx context.Context, itemID uuid.UUID, snapshotAt time.Time, counters, deltas models.Counters, velocity float64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO engagement_history (
			item_id, snapshot_at,
			counter_view, counter_like, counter_share, counter_comment, counter_quote, counter_bookmark, counter_collect,
			delta_view, delta_like, delta_share, delta_comment, delta_quote, delta_bookmark, delta_collect,
			velocity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		itemID, snapshotAt,
		counters.View, counters.Like, counters.Share, counters.Comment, counters.Quote, counters.Bookmark, counters.Collect,
		deltas.View, deltas.Like, deltas.Share, deltas.Comment, deltas.Quote, deltas.Bookmark, deltas.Collect,
		velocity)
	return err
}

// ListSnapshots returns every snapshot for an item ordered by snapshot_at,
// used by the velocity-linear predictor.
func (db *DB) ListSnapshots(ctx context.Context, itemID uuid.UUID) ([]models.EngagementSnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT snapshot_at,
			counter_view, counter_like, counter_share, counter_comment, counter_quote, counter_bookmark, counter_collect,
			delta_view, delta_like, delta_share, delta_comment, delta_quote, delta_bookmark, delta_collect,
			velocity
		FROM engagement_history WHERE item_id = ? ORDER BY snapshot_at ASC`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EngagementSnapshot
	for rows.Next() {
		var s models.EngagementSnapshot
		s.ItemID = itemID
		if err := rows.Scan(&s.SnapshotAt,
			&s.Counters.View, &s.Counters.Like, &s.Counters.Share, &s.Counters.Comment, &s.Counters.Quote, &s.Counters.Bookmark, &s.Counters.Collect,
			&s.Deltas.View, &s.Deltas.Like, &s.Deltas.Share, &s.Deltas.Comment, &s.Deltas.Quote, &s.Deltas.Bookmark, &s.Deltas.Collect,
			&s.Velocity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTracking loads the tracking row for an item, or sql.ErrNoRows if the
// item has not yet been assigned a tier.
func (db *DB) GetTracking(ctx context.Context, itemID uuid.UUID) (*models.Tracking, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var t models.Tracking
	t.ItemID = itemID
	var nextUpdate, lastUpdated sql.NullTime
	err := db.conn.QueryRowContext(ctx, `
		SELECT tier, next_update_at, update_count, last_updated_at
		FROM engagement_tracking WHERE item_id = ?`, itemID).Scan(
		&t.Tier, &nextUpdate, &t.UpdateCount, &lastUpdated)
	if err != nil {
		return nil, err
	}
	if nextUpdate.Valid {
		t.NextUpdateAt = &nextUpdate.Time
	}
	if lastUpdated.Valid {
		t.LastUpdatedAt = &lastUpdated.Time
	}
	return &t, nil
}

// UpsertTracking inserts a fresh tracking row (ingest-time tier assignment)
// or, for an existing item, overwrites its tier/next_update_at and
// conditionally increments update_count, returning the row's new value.
// The counter is never read-increment-written in separate round trips.
func (db *DB) UpsertTracking(ctx context.Context, itemID uuid.UUID, tier models.Tier, nextUpdateAt *time.Time, bumpUpdateCount bool) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT true FROM engagement_tracking WHERE item_id = ?`, itemID).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		_, ierr := tx.ExecContext(ctx, `
			INSERT INTO engagement_tracking (item_id, tier, next_update_at, update_count, last_updated_at)
			VALUES (?, ?, ?, 0, CURRENT_TIMESTAMP)`, itemID, string(tier), nextUpdateAt)
		if ierr != nil {
			return 0, ierr
		}
		return 0, tx.Commit()
	case err != nil:
		return 0, fmt.Errorf("lookup tracking: %w", err)
	}

	if bumpUpdateCount {
		if _, uerr := tx.ExecContext(ctx, `
			UPDATE engagement_tracking SET
				tier = ?, next_update_at = ?, last_updated_at = CURRENT_TIMESTAMP,
				update_count = update_count + 1
			WHERE item_id = ?`, string(tier), nextUpdateAt, itemID); uerr != nil {
			return 0, uerr
		}
	} else if _, uerr := tx.ExecContext(ctx, `
			UPDATE engagement_tracking SET tier = ?, next_update_at = ?
			WHERE item_id = ?`, string(tier), nextUpdateAt, itemID); uerr != nil {
		return 0, uerr
	}

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT update_count FROM engagement_tracking WHERE item_id = ?`, itemID).Scan(&count); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

// DueForRefresh returns up to limit item IDs whose tier is refreshable and
// whose next_update_at has passed, for the rule-poll-independent tick path
// of the job scheduler (used to self-heal if a refresh_engagement job was
// lost).
func (db *DB) DueForRefresh(ctx context.Context, limit int) ([]uuid.UUID, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id FROM engagement_tracking
		WHERE tier != 'cold' AND next_update_at IS NOT NULL AND next_update_at <= CURRENT_TIMESTAMP
		ORDER BY next_update_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
