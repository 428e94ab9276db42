// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lkmcompany/gorgone/internal/models"
)

// GetZone loads a zone by ID. Zones are owned by external collaborators;
// the core only reads them.
func (db *DB) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var z models.Zone
	var settingsJSON string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, client_id, source_tweet, source_video, source_news, settings_json, is_active
		FROM zones WHERE id = ?`, id).Scan(
		&z.ID, &z.ClientID, &z.DataSources.Tweet, &z.DataSources.Video, &z.DataSources.News,
		&settingsJSON, &z.IsActive)
	if err != nil {
		return nil, err
	}
	z.Settings = decodeZoneSettings(settingsJSON)
	return &z, nil
}

// ListActiveZones returns every active zone, used by the aggregate
// refresher to know which tenants need materialized views.
func (db *DB) ListActiveZones(ctx context.Context) ([]models.Zone, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, client_id, source_tweet, source_video, source_news, settings_json, is_active
		FROM zones WHERE is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Zone
	for rows.Next() {
		var z models.Zone
		var settingsJSON string
		if err := rows.Scan(&z.ID, &z.ClientID, &z.DataSources.Tweet, &z.DataSources.Video, &z.DataSources.News,
			&settingsJSON, &z.IsActive); err != nil {
			return nil, err
		}
		z.Settings = decodeZoneSettings(settingsJSON)
		out = append(out, z)
	}
	return out, rows.Err()
}

// decodeZoneSettings parses the closed enum of recognized zone settings,
// preserving unrecognized keys in Extra but never acting on them.
func decodeZoneSettings(raw string) models.ZoneSettings {
	var all map[string]any
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return models.ZoneSettings{}
	}
	var s models.ZoneSettings
	s.Extra = make(map[string]any)
	for k, v := range all {
		switch k {
		case "language":
			if str, ok := v.(string); ok {
				s.Language = str
			}
		case "attila_enabled":
			if b, ok := v.(bool); ok {
				s.AttilaEnabled = b
			}
		case "default_tier_thresholds":
			// Thresholds are stored as a nested object; re-marshal into
			// the typed struct rather than hand-walking the map.
			if sub, err := json.Marshal(v); err == nil {
				var t models.TierThresholds
				if json.Unmarshal(sub, &t) == nil {
					s.DefaultTierThresholds = &t
				}
			}
		default:
			s.Extra[k] = v
		}
	}
	return s
}
