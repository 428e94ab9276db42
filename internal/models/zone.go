// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package models

import "github.com/google/uuid"

// DataSources records which providers a zone ingests from.
type DataSources struct {
	Tweet bool `json:"tweet"`
	Video bool `json:"video"`
	News  bool `json:"news"`
}

// ZoneSettings is the closed enum of recognized per-zone settings. Unknown
// keys read from the database are preserved in Extra but ignored by the
// core, per the "string-typed config keys" redesign flag.
type ZoneSettings struct {
	Language               string          `json:"language,omitempty"`
	AttilaEnabled          bool            `json:"attila_enabled,omitempty"`
	DefaultTierThresholds  *TierThresholds `json:"default_tier_thresholds,omitempty"`
	Extra                  map[string]any  `json:"-"`
}

// Zone is a tenant-like namespace within a client. The core treats zones as
// read-only: they are created and updated by external collaborators (the
// web UI, CRUD endpoints).
type Zone struct {
	ID          uuid.UUID    `json:"id"`
	ClientID    uuid.UUID    `json:"client_id"`
	DataSources DataSources  `json:"data_sources"`
	Settings    ZoneSettings `json:"settings"`
	IsActive    bool         `json:"is_active"`
}
