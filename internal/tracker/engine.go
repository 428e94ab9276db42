// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package tracker implements the engagement-lifecycle tier engine: the
// per-item refresh tick that re-fetches live counters, appends a snapshot,
// and recomputes the item's tier and next refresh time.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/metrics"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/provider"
)

// CounterFetcher is the subset of provider.PullAdapter/PushAdapter a
// refresh tick needs: re-fetching live counters for one item. All three
// concrete adapters satisfy it.
type CounterFetcher interface {
	FetchCounters(ctx context.Context, providerItemID string) (models.Counters, error)
}

// Tracker owns the snapshot algorithm and tier-transition table. One
// instance is constructed at startup and shared by every refresh_engagement
// job handler.
type Tracker struct {
	db       *database.DB
	fetchers map[models.Provider]CounterFetcher
	defaults models.TierThresholds
	logger   zerolog.Logger
	now      func() time.Time
}

// New builds a Tracker. fetchers must carry one entry per provider the
// deployment ingests from; a refresh tick for a provider with no entry
// fails loudly rather than silently skipping.
func New(db *database.DB, fetchers map[models.Provider]CounterFetcher, defaults models.TierThresholds, logger zerolog.Logger) *Tracker {
	return &Tracker{
		db:       db,
		fetchers: fetchers,
		defaults: defaults,
		logger:   logger.With().Str("component", "tracker").Logger(),
		now:      time.Now,
	}
}

// ThresholdsFromConfig adapts a loaded config.TrackerConfig into the
// models.TierThresholds the engine operates on.
func ThresholdsFromConfig(cfg config.TrackerConfig) models.TierThresholds {
	return models.TierThresholds{
		UltraHotVelocity: cfg.UltraHotVelocity,
		HotVelocity:      cfg.HotVelocity,
		UltraHotAgeLimit: cfg.UltraHotAgeLimit,
		HotAgeLimit:      cfg.HotAgeLimit,
		WarmAgeLimit:     cfg.WarmAgeLimit,
		UltraHotPeriod:   cfg.UltraHotPeriod,
		HotPeriod:        cfg.HotPeriod,
		WarmPeriod:       cfg.WarmPeriod,
	}
}

// AssignInitialTier classifies a newly inserted item purely by age, per the
// ingest-time half of the tier table.
// It never considers velocity: a fresh item has no prior snapshot yet.
func AssignInitialTier(age time.Duration, th models.TierThresholds) models.Tier {
	switch {
	case age < th.UltraHotAgeLimit:
		return models.TierUltraHot
	case age < th.HotAgeLimit:
		return models.TierHot
	case age < th.WarmAgeLimit:
		return models.TierWarm
	default:
		return models.TierCold
	}
}

// RefreshPeriod returns the refresh interval for a tier, or nil for cold
// (terminal, no further refresh).
func RefreshPeriod(tier models.Tier, th models.TierThresholds) *time.Duration {
	var d time.Duration
	switch tier {
	case models.TierUltraHot:
		d = th.UltraHotPeriod
	case models.TierHot:
		d = th.HotPeriod
	case models.TierWarm:
		d = th.WarmPeriod
	default:
		return nil
	}
	return &d
}

// nextTier applies the tier transition table to a refresh tick's outcome.
// current is the item's tier before this tick. age is measured from
// created_at_source. bothDeltasZero reports
// whether this tick's and the prior tick's total delta were both zero,
// which only matters while current is ultra_hot.
func nextTier(current models.Tier, age time.Duration, velocity float64, bothDeltasZero bool, th models.TierThresholds) models.Tier {
	tier := current

	// Age-based demotion, cascading through the ladder in order so a
	// long-idle item that skipped several ticks lands in the right bucket.
	if tier == models.TierUltraHot && age >= th.UltraHotAgeLimit {
		tier = models.TierHot
	}
	if tier == models.TierHot && age >= th.HotAgeLimit {
		tier = models.TierWarm
	}
	if tier == models.TierWarm && age >= th.WarmAgeLimit {
		tier = models.TierCold
	}

	// Two consecutive zero-delta snapshots demote ultra_hot straight to
	// warm, skipping hot.
	if tier == models.TierUltraHot && bothDeltasZero {
		tier = models.TierWarm
	}

	if tier == models.TierCold {
		return tier
	}

	// Promotion only when velocity clears the next-higher tier's
	// threshold AND the item is still within that tier's age window.
	switch tier {
	case models.TierWarm:
		if velocity >= th.HotVelocity && age < th.HotAgeLimit {
			tier = models.TierHot
		}
		fallthrough
	case models.TierHot:
		if velocity >= th.UltraHotVelocity && age < th.UltraHotAgeLimit {
			tier = models.TierUltraHot
		}
	}

	return tier
}

// minElapsedHours guards the velocity division:
// elapsed time since the previous snapshot is clamped to at least 1 minute.
const minElapsedHours = 1.0 / 60.0

// Refresh runs one snapshot-algorithm tick for a tracked item.
func (t *Tracker) Refresh(ctx context.Context, itemID uuid.UUID) error {
	logger := t.logger.With().Str("item_id", itemID.String()).Logger()

	item, err := t.db.GetItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("tracker: load item %s: %w", itemID, err)
	}

	tracking, err := t.db.GetTracking(ctx, itemID)
	currentTier := models.TierCold
	switch {
	case err == nil:
		currentTier = tracking.Tier
	case errors.Is(err, sql.ErrNoRows):
		// No tracking row yet; treat as warm so a first refresh can still
		// promote it rather than being stuck below every threshold.
		currentTier = models.TierWarm
	default:
		return fmt.Errorf("tracker: load tracking %s: %w", itemID, err)
	}

	providerTag, providerItemID, err := t.db.GetItemProviderRef(ctx, itemID)
	if err != nil {
		return fmt.Errorf("tracker: load provider ref %s: %w", itemID, err)
	}

	fetcher, ok := t.fetchers[providerTag]
	if !ok {
		return fmt.Errorf("tracker: no counter fetcher registered for provider %s", providerTag)
	}

	now := t.now()

	fresh, err := fetcher.FetchCounters(ctx, providerItemID)
	if errors.Is(err, provider.ErrItemNotFound) {
		logger.Info().Str("provider", string(providerTag)).Msg("provider reports item gone, tier -> cold")
		metrics.RecordTierTransition(string(currentTier), string(models.TierCold))
		if _, uerr := t.db.UpsertTracking(ctx, itemID, models.TierCold, nil, false); uerr != nil {
			return fmt.Errorf("tracker: mark cold %s: %w", itemID, uerr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("tracker: fetch counters %s: %w", itemID, err)
	}

	previous, err := t.db.UpdateItemCounters(ctx, itemID, fresh)
	if err != nil {
		return fmt.Errorf("tracker: update counters %s: %w", itemID, err)
	}

	history, err := t.db.ListSnapshots(ctx, itemID)
	if err != nil {
		return fmt.Errorf("tracker: list snapshots %s: %w", itemID, err)
	}

	// A first snapshot has no previous observation: its deltas carry the
	// full counters and its velocity is zero, so the first tick can never
	// promote on a fabricated rate.
	deltas := fresh
	velocity := 0.0
	prevDeltaZero := false
	if len(history) > 0 {
		deltas = fresh.Sub(previous)
		last := history[len(history)-1]
		elapsedHours := minElapsedHours
		if h := now.Sub(last.SnapshotAt).Hours(); h > elapsedHours {
			elapsedHours = h
		}
		velocity = float64(deltas.Sum()) / elapsedHours
		prevDeltaZero = last.Deltas.Sum() == 0
	}

	if err := t.db.AppendSnapshot(ctx, itemID, now, fresh, deltas, velocity); err != nil {
		return fmt.Errorf("tracker: append snapshot %s: %w", itemID, err)
	}
	metrics.SnapshotsAppendedTotal.WithLabelValues(string(currentTier)).Inc()

	thresholds := t.thresholdsForZone(ctx, item.ZoneID)
	age := item.Age(now)
	bothDeltasZero := prevDeltaZero && deltas.Sum() == 0
	newTier := nextTier(currentTier, age, velocity, bothDeltasZero, thresholds)
	if newTier != currentTier {
		logger.Info().Str("from", string(currentTier)).Str("to", string(newTier)).Msg("tier transition")
		metrics.RecordTierTransition(string(currentTier), string(newTier))
	}

	var nextUpdateAt *time.Time
	if period := RefreshPeriod(newTier, thresholds); period != nil {
		at := now.Add(*period)
		nextUpdateAt = &at
	}

	updateCount, err := t.db.UpsertTracking(ctx, itemID, newTier, nextUpdateAt, true)
	if err != nil {
		return fmt.Errorf("tracker: upsert tracking %s: %w", itemID, err)
	}

	if updateCount >= 2 {
		current := models.EngagementSnapshot{ItemID: itemID, SnapshotAt: now, Counters: fresh, Deltas: deltas, Velocity: velocity}
		full := append(history, current)
		predictions := ComputePredictions(full, now)
		blob, merr := json.Marshal(predictions)
		if merr != nil {
			return fmt.Errorf("tracker: marshal predictions %s: %w", itemID, merr)
		}
		if err := t.db.WritePredictions(ctx, itemID, blob); err != nil {
			return fmt.Errorf("tracker: write predictions %s: %w", itemID, err)
		}
	}

	return nil
}

// thresholdsForZone returns the zone's override thresholds if it has set
// one in ZoneSettings.DefaultTierThresholds, falling back to the tracker's
// global defaults otherwise. A zone lookup failure also falls back to the
// defaults rather than failing the whole refresh tick.
func (t *Tracker) thresholdsForZone(ctx context.Context, zoneID uuid.UUID) models.TierThresholds {
	zone, err := t.db.GetZone(ctx, zoneID)
	if err != nil || zone.Settings.DefaultTierThresholds == nil {
		return t.defaults
	}
	return *zone.Settings.DefaultTierThresholds
}
