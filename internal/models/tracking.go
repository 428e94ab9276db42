// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package models

import (
	"time"

	"github.com/google/uuid"
)

// EngagementSnapshot is a timestamped observation of an item's counters plus
// the delta and velocity since the previous snapshot. SnapshotAt strictly
// increases per item.
type EngagementSnapshot struct {
	ItemID     uuid.UUID `json:"item_id"`
	SnapshotAt time.Time `json:"snapshot_at"`
	Counters   Counters  `json:"counters"`
	Deltas     Counters  `json:"deltas"`
	Velocity   float64   `json:"velocity"`
}

// Tracking is the refresh-schedule state for one tracked item. Exactly one
// row exists per tracked item; tier=cold implies NextUpdateAt is nil.
type Tracking struct {
	ItemID        uuid.UUID  `json:"item_id"`
	Tier          Tier       `json:"tier"`
	NextUpdateAt  *time.Time `json:"next_update_at,omitempty"`
	UpdateCount   int64      `json:"update_count"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

// TierThresholds parameterizes the tier transition table. Velocity
// thresholds have no universally right value, so they are configurable per
// zone with a global default; age limits and refresh periods rarely need
// tuning but live here for the same reason.
type TierThresholds struct {
	UltraHotVelocity float64       `json:"ultra_hot_velocity"`
	HotVelocity      float64       `json:"hot_velocity"`
	UltraHotAgeLimit time.Duration `json:"ultra_hot_age_limit"`
	HotAgeLimit      time.Duration `json:"hot_age_limit"`
	WarmAgeLimit     time.Duration `json:"warm_age_limit"`
	UltraHotPeriod   time.Duration `json:"ultra_hot_period"`
	HotPeriod        time.Duration `json:"hot_period"`
	WarmPeriod       time.Duration `json:"warm_period"`
}

// DefaultTierThresholds returns the global-default thresholds applied when a
// zone has not overridden them in ZoneSettings.
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{
		UltraHotVelocity: 50.0, // combined counter units per hour
		HotVelocity:      10.0,
		UltraHotAgeLimit: time.Hour,
		HotAgeLimit:      24 * time.Hour,
		WarmAgeLimit:     7 * 24 * time.Hour,
		UltraHotPeriod:   10 * time.Minute,
		HotPeriod:        30 * time.Minute,
		WarmPeriod:       time.Hour,
	}
}
