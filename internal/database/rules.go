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

// ListRules returns every rule registered to a zone.
func (db *DB) ListRules(ctx context.Context, zoneID uuid.UUID) ([]models.Rule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, zone_id, name, kind, query_spec, interval_seconds, is_active,
			external_rule_id, created_at, last_polled_at, total_items_collected, last_item_count
		FROM rules WHERE zone_id = ? ORDER BY created_at ASC`, zoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// GetRule loads a single rule by internal ID.
func (db *DB) GetRule(ctx context.Context, id uuid.UUID) (*models.Rule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, zone_id, name, kind, query_spec, interval_seconds, is_active,
			external_rule_id, created_at, last_polled_at, total_items_collected, last_item_count
		FROM rules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rs, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &rs[0], nil
}

// GetRuleByExternalID resolves the zone-owning rule for an inbound webhook
// by the push provider's remote rule identifier.
func (db *DB) GetRuleByExternalID(ctx context.Context, externalRuleID string) (*models.Rule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, zone_id, name, kind, query_spec, interval_seconds, is_active,
			external_rule_id, created_at, last_polled_at, total_items_collected, last_item_count
		FROM rules WHERE external_rule_id = ?`, externalRuleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rs, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &rs[0], nil
}

// CreateRule inserts a new rule. ExternalRuleID is set by the caller only
// after a successful push-provider mirror create (internal/rule).
func (db *DB) CreateRule(ctx context.Context, r models.Rule) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO rules (id, zone_id, name, kind, query_spec, interval_seconds, is_active, external_rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ZoneID, r.Name, string(r.Kind), r.QuerySpec, r.IntervalSeconds, r.IsActive, r.ExternalRuleID)
	return err
}

// UpdateRule applies a partial patch to a rule's mutable fields.
func (db *DB) UpdateRule(ctx context.Context, id uuid.UUID, patch models.RulePatch) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if patch.Name != nil {
		if _, err := db.conn.ExecContext(ctx, `UPDATE rules SET name = ? WHERE id = ?`, *patch.Name, id); err != nil {
			return err
		}
	}
	if patch.QuerySpec != nil {
		if _, err := db.conn.ExecContext(ctx, `UPDATE rules SET query_spec = ? WHERE id = ?`, *patch.QuerySpec, id); err != nil {
			return err
		}
	}
	if patch.IntervalSeconds != nil {
		if _, err := db.conn.ExecContext(ctx, `UPDATE rules SET interval_seconds = ? WHERE id = ?`, *patch.IntervalSeconds, id); err != nil {
			return err
		}
	}
	if patch.IsActive != nil {
		if _, err := db.conn.ExecContext(ctx, `UPDATE rules SET is_active = ? WHERE id = ?`, *patch.IsActive, id); err != nil {
			return err
		}
	}
	return nil
}

// SetRuleExternalID records the push provider's remote rule id after a
// successful mirror create.
func (db *DB) SetRuleExternalID(ctx context.Context, id uuid.UUID, externalRuleID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx, `UPDATE rules SET external_rule_id = ? WHERE id = ?`, externalRuleID, id)
	return err
}

// ToggleRule flips a rule's is_active flag.
func (db *DB) ToggleRule(ctx context.Context, id uuid.UUID, active bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx, `UPDATE rules SET is_active = ? WHERE id = ?`, active, id)
	return err
}

// DeleteRule removes a rule's local record. The remote-mirror delete on the
// push provider is attempted by internal/rule before this call; local
// delete proceeds even if that call failed.
func (db *DB) DeleteRule(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	return err
}

// RecordPoll updates a rule's poll bookkeeping after a successful fetch.
func (db *DB) RecordPoll(ctx context.Context, id uuid.UUID, itemCount int) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx, `
		UPDATE rules SET
			last_polled_at = CURRENT_TIMESTAMP,
			total_items_collected = total_items_collected + ?,
			last_item_count = ?
		WHERE id = ?`, itemCount, itemCount, id)
	return err
}

// ListActiveRules returns every active rule across all zones, used by the
// poll bootstrapper at startup to re-seed poll_rule jobs.
func (db *DB) ListActiveRules(ctx context.Context) ([]models.Rule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, zone_id, name, kind, query_spec, interval_seconds, is_active,
			external_rule_id, created_at, last_polled_at, total_items_collected, last_item_count
		FROM rules WHERE is_active ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func scanRules(rows *sql.Rows) ([]models.Rule, error) {
	var out []models.Rule
	for rows.Next() {
		var r models.Rule
		var externalRuleID sql.NullString
		var lastPolledAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.ZoneID, &r.Name, &r.Kind, &r.QuerySpec, &r.IntervalSeconds, &r.IsActive,
			&externalRuleID, &r.CreatedAt, &lastPolledAt, &r.TotalItemsCollected, &r.LastItemCount); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if externalRuleID.Valid {
			r.ExternalRuleID = &externalRuleID.String
		}
		if lastPolledAt.Valid {
			r.LastPolledAt = &lastPolledAt.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
