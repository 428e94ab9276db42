// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lkmcompany/gorgone/internal/database/query"
)

// AggregateWindow is one of the fixed lookback periods materialized
// for the top-authors materialized view (3h/6h/12h/24h/7d/30d).
type AggregateWindow time.Duration

const (
	Window3h  AggregateWindow = AggregateWindow(3 * time.Hour)
	Window6h  AggregateWindow = AggregateWindow(6 * time.Hour)
	Window12h AggregateWindow = AggregateWindow(12 * time.Hour)
	Window24h AggregateWindow = AggregateWindow(24 * time.Hour)
	Window7d  AggregateWindow = AggregateWindow(7 * 24 * time.Hour)
	Window30d AggregateWindow = AggregateWindow(30 * 24 * time.Hour)
)

// TopAuthorRow is one row of the "top authors per window" read aggregate.
type TopAuthorRow struct {
	AuthorID    uuid.UUID
	Handle      string
	ItemCount   int64
	TotalLikes  int64
	TotalViews  int64
}

// TopAuthors computes the top-N authors by item count within a zone over a
// lookback window, read directly off items/authors rather than a
// precomputed table; a dedicated supervisor service (internal/aggregate)
// refreshes a materialized copy on a fixed cadence for external
// collaborators.
func (db *DB) TopAuthors(ctx context.Context, zoneID uuid.UUID, window AggregateWindow, limit int) ([]TopAuthorRow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	since := time.Now().Add(-time.Duration(window))
	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.id, a.handle, COUNT(*) AS item_count,
			SUM(i.counter_like) AS total_likes, SUM(i.counter_view) AS total_views
		FROM items i
		JOIN authors a ON a.id = i.author_id
		WHERE i.zone_id = ? AND i.created_at_source >= ?
		GROUP BY a.id, a.handle
		ORDER BY item_count DESC
		LIMIT ?`, zoneID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("top authors query: %w", err)
	}
	defer rows.Close()

	var out []TopAuthorRow
	for rows.Next() {
		var r TopAuthorRow
		if err := rows.Scan(&r.AuthorID, &r.Handle, &r.ItemCount, &r.TotalLikes, &r.TotalViews); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OverviewStats is the zone-period summary read aggregate.
type OverviewStats struct {
	ZoneID        uuid.UUID
	Since         time.Time
	ItemCount     int64
	UniqueAuthors int64
	TotalLikes    int64
	TotalViews    int64
	TotalComments int64
}

// Overview computes summary stats for a zone since a given time, filterable
// by provider using the shared WhereBuilder (internal/database/query).
func (db *DB) Overview(ctx context.Context, zoneID uuid.UUID, since time.Time, providers []string) (OverviewStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	wb := query.NewWhereBuilder()
	wb.AddClause("zone_id = ?", zoneID)
	wb.AddClause("created_at_source >= ?", since)
	wb.AddProviders(providers)
	where, args := wb.BuildWithPrefix()

	stats := OverviewStats{ZoneID: zoneID, Since: since}
	q := fmt.Sprintf(`
		SELECT COUNT(*), COUNT(DISTINCT author_id),
			COALESCE(SUM(counter_like), 0), COALESCE(SUM(counter_view), 0), COALESCE(SUM(counter_comment), 0)
		FROM items %s`, where)
	err := db.conn.QueryRowContext(ctx, q, args...).Scan(
		&stats.ItemCount, &stats.UniqueAuthors, &stats.TotalLikes, &stats.TotalViews, &stats.TotalComments)
	if err != nil {
		return OverviewStats{}, fmt.Errorf("overview query: %w", err)
	}
	return stats, nil
}

// ReplaceTopAuthors swaps a zone/window's materialized top-authors rows in
// one transaction.
func (db *DB) ReplaceTopAuthors(ctx context.Context, zoneID uuid.UUID, window AggregateWindow, rows []TopAuthorRow) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seconds := int64(time.Duration(window).Seconds())
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM agg_top_authors WHERE zone_id = ? AND window_seconds = ?`, zoneID, seconds); err != nil {
		return err
	}
	for rank, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agg_top_authors (zone_id, window_seconds, rank, author_id, handle, item_count, total_likes, total_views)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			zoneID, seconds, rank+1, r.AuthorID, r.Handle, r.ItemCount, r.TotalLikes, r.TotalViews); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceOverview swaps a zone/window's materialized overview row.
func (db *DB) ReplaceOverview(ctx context.Context, window AggregateWindow, stats OverviewStats) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seconds := int64(time.Duration(window).Seconds())
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM agg_overview WHERE zone_id = ? AND window_seconds = ?`, stats.ZoneID, seconds); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO agg_overview (zone_id, window_seconds, item_count, unique_authors, total_likes, total_views, total_comments)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stats.ZoneID, seconds, stats.ItemCount, stats.UniqueAuthors, stats.TotalLikes, stats.TotalViews, stats.TotalComments); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceZoneLocations swaps a zone's materialized unique-locations rows.
func (db *DB) ReplaceZoneLocations(ctx context.Context, zoneID uuid.UUID, locations []string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM agg_zone_locations WHERE zone_id = ?`, zoneID); err != nil {
		return err
	}
	for _, loc := range locations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agg_zone_locations (zone_id, location) VALUES (?, ?)`, zoneID, loc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UniqueLocations returns distinct non-empty author locations observed in a
// zone, the third read aggregate the shared database contract names.
func (db *DB) UniqueLocations(ctx context.Context, zoneID uuid.UUID) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT a.location
		FROM authors a
		JOIN items i ON i.author_id = a.id
		WHERE i.zone_id = ? AND a.location IS NOT NULL AND a.location != ''`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}
