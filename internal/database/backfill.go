// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// BackfillCursor is the persisted pagination state of one backfill run, so
// a crashed backfill resumes from its last-seen cursor instead of
// restarting from page one.
type BackfillCursor struct {
	RuleID         uuid.UUID
	Cursor         string
	RequestedCount int
	CollectedCount int
	UpdatedAt      time.Time
}

// GetBackfillCursor returns the saved cursor for a rule, or nil when no
// backfill is in progress.
func (db *DB) GetBackfillCursor(ctx context.Context, ruleID uuid.UUID) (*BackfillCursor, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var c BackfillCursor
	c.RuleID = ruleID
	err := db.conn.QueryRowContext(ctx, `
		SELECT cursor, requested_count, collected_count, updated_at
		FROM backfill_cursors WHERE rule_id = ?`, ruleID).Scan(
		&c.Cursor, &c.RequestedCount, &c.CollectedCount, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveBackfillCursor upserts a rule's backfill progress after each page.
func (db *DB) SaveBackfillCursor(ctx context.Context, c BackfillCursor) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE backfill_cursors SET cursor = ?, requested_count = ?, collected_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE rule_id = ?`, c.Cursor, c.RequestedCount, c.CollectedCount, c.RuleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO backfill_cursors (rule_id, cursor, requested_count, collected_count)
		VALUES (?, ?, ?, ?)`, c.RuleID, c.Cursor, c.RequestedCount, c.CollectedCount)
	return err
}

// ClearBackfillCursor removes a completed (or abandoned) backfill's state.
func (db *DB) ClearBackfillCursor(ctx context.Context, ruleID uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx, `DELETE FROM backfill_cursors WHERE rule_id = ?`, ruleID)
	return err
}
