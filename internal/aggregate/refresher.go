// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package aggregate materializes the shared read aggregates (top authors
// per window, zone overview stats, unique locations) on a fixed cadence.
// External collaborators read the agg_* tables; the core only writes them.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/database"
)

// DefaultInterval is the refresh cadence when none is configured.
const DefaultInterval = 15 * time.Minute

// topAuthorLimit bounds each materialized top-authors window.
const topAuthorLimit = 50

// windows are the lookback periods materialized for every zone.
var windows = []database.AggregateWindow{
	database.Window3h,
	database.Window6h,
	database.Window12h,
	database.Window24h,
	database.Window7d,
	database.Window30d,
}

// Refresher recomputes the materialized aggregates for every active zone.
// It implements suture.Service.
type Refresher struct {
	db       *database.DB
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRefresher builds a Refresher running at the given cadence.
func NewRefresher(db *database.DB, interval time.Duration, logger zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		db:       db,
		interval: interval,
		logger:   logger.With().Str("component", "aggregate").Logger(),
		now:      time.Now,
	}
}

// Serve refreshes once at startup, then on every tick, until ctx is
// canceled.
func (r *Refresher) Serve(ctx context.Context) error {
	if err := r.RefreshAll(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("initial aggregate refresh failed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := r.RefreshAll(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("aggregate refresh failed")
		}
	}
}

// RefreshAll recomputes every aggregate for every active zone. A failure
// in one zone is logged and does not block the others.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	zones, err := r.db.ListActiveZones(ctx)
	if err != nil {
		return err
	}

	start := r.now()
	for _, zone := range zones {
		if err := r.refreshZone(ctx, zone.ID); err != nil {
			r.logger.Warn().Err(err).Str("zone_id", zone.ID.String()).Msg("zone aggregate refresh failed")
		}
	}
	r.logger.Debug().
		Int("zones", len(zones)).
		Dur("elapsed", r.now().Sub(start)).
		Msg("aggregate refresh complete")
	return nil
}

func (r *Refresher) refreshZone(ctx context.Context, zoneID uuid.UUID) error {
	for _, window := range windows {
		authors, err := r.db.TopAuthors(ctx, zoneID, window, topAuthorLimit)
		if err != nil {
			return fmt.Errorf("top authors %s: %w", windowLabel(window), err)
		}
		if err := r.db.ReplaceTopAuthors(ctx, zoneID, window, authors); err != nil {
			return fmt.Errorf("materialize top authors %s: %w", windowLabel(window), err)
		}

		stats, err := r.db.Overview(ctx, zoneID, r.now().Add(-time.Duration(window)), nil)
		if err != nil {
			return fmt.Errorf("overview %s: %w", windowLabel(window), err)
		}
		if err := r.db.ReplaceOverview(ctx, window, stats); err != nil {
			return fmt.Errorf("materialize overview %s: %w", windowLabel(window), err)
		}
	}

	locations, err := r.db.UniqueLocations(ctx, zoneID)
	if err != nil {
		return fmt.Errorf("unique locations: %w", err)
	}
	if err := r.db.ReplaceZoneLocations(ctx, zoneID, locations); err != nil {
		return fmt.Errorf("materialize locations: %w", err)
	}
	return nil
}

func windowLabel(w database.AggregateWindow) string {
	return time.Duration(w).String()
}
