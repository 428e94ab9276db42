// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/provider"
)

func testThresholds() models.TierThresholds {
	return models.TierThresholds{
		UltraHotVelocity: 50.0,
		HotVelocity:      10.0,
		UltraHotAgeLimit: time.Hour,
		HotAgeLimit:      24 * time.Hour,
		WarmAgeLimit:     7 * 24 * time.Hour,
		UltraHotPeriod:   10 * time.Minute,
		HotPeriod:        30 * time.Minute,
		WarmPeriod:       time.Hour,
	}
}

func TestAssignInitialTier(t *testing.T) {
	th := testThresholds()
	cases := []struct {
		age  time.Duration
		want models.Tier
	}{
		{30 * time.Minute, models.TierUltraHot},
		{12 * time.Hour, models.TierHot},
		{3 * 24 * time.Hour, models.TierWarm},
		{8 * 24 * time.Hour, models.TierCold},
	}
	for _, c := range cases {
		if got := AssignInitialTier(c.age, th); got != c.want {
			t.Errorf("AssignInitialTier(%s) = %s, want %s", c.age, got, c.want)
		}
	}
}

func TestNextTier_ZeroDeltaDemotesUltraHotToWarm(t *testing.T) {
	th := testThresholds()
	got := nextTier(models.TierUltraHot, 30*time.Minute, 0, true, th)
	if got != models.TierWarm {
		t.Errorf("nextTier = %s, want warm", got)
	}
}

func TestNextTier_AgeDemotesUltraHotToHot(t *testing.T) {
	th := testThresholds()
	got := nextTier(models.TierUltraHot, 2*time.Hour, 0, false, th)
	if got != models.TierHot {
		t.Errorf("nextTier = %s, want hot", got)
	}
}

func TestNextTier_AgeCascadesThroughLadder(t *testing.T) {
	th := testThresholds()
	got := nextTier(models.TierUltraHot, 8*24*time.Hour, 0, false, th)
	if got != models.TierCold {
		t.Errorf("nextTier = %s, want cold", got)
	}
}

func TestNextTier_PromotesWarmToUltraHotWhenVeryFast(t *testing.T) {
	th := testThresholds()
	got := nextTier(models.TierWarm, 30*time.Minute, 60, false, th)
	if got != models.TierUltraHot {
		t.Errorf("nextTier = %s, want ultra_hot", got)
	}
}

func TestNextTier_PromotesWarmToHotOnlyWhenModeratelyFast(t *testing.T) {
	th := testThresholds()
	got := nextTier(models.TierWarm, 30*time.Minute, 20, false, th)
	if got != models.TierHot {
		t.Errorf("nextTier = %s, want hot", got)
	}
}

func TestNextTier_NoPromotionPastAgeWindow(t *testing.T) {
	th := testThresholds()
	// Fast velocity, but the item is already 2 days old: too old to ever
	// re-enter ultra_hot or hot, regardless of velocity.
	got := nextTier(models.TierWarm, 2*24*time.Hour, 100, false, th)
	if got != models.TierWarm {
		t.Errorf("nextTier = %s, want warm", got)
	}
}

func TestNextTier_ColdIsTerminal(t *testing.T) {
	th := testThresholds()
	got := nextTier(models.TierCold, time.Minute, 1000, false, th)
	if got != models.TierCold {
		t.Errorf("nextTier = %s, want cold (terminal)", got)
	}
}

func TestRefreshPeriod(t *testing.T) {
	th := testThresholds()
	if p := RefreshPeriod(models.TierCold, th); p != nil {
		t.Errorf("RefreshPeriod(cold) = %v, want nil", p)
	}
	if p := RefreshPeriod(models.TierUltraHot, th); p == nil || *p != th.UltraHotPeriod {
		t.Errorf("RefreshPeriod(ultra_hot) = %v, want %s", p, th.UltraHotPeriod)
	}
}

// fakeFetcher returns a scripted sequence of counters (or ErrItemNotFound)
// across successive calls, one per provider, standing in for a live
// provider.PullAdapter in the integration test below.
type fakeFetcher struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	counters models.Counters
	notFound bool
}

func (f *fakeFetcher) FetchCounters(ctx context.Context, providerItemID string) (models.Counters, error) {
	if f.calls >= len(f.responses) {
		return models.Counters{}, provider.ErrItemNotFound
	}
	r := f.responses[f.calls]
	f.calls++
	if r.notFound {
		return models.Counters{}, provider.ErrItemNotFound
	}
	return r.counters, nil
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedItem inserts a zone and item row directly (the core treats both as
// externally owned; tests stand in for that external write).
func seedItem(t *testing.T, db *database.DB, zoneID, itemID uuid.UUID, createdAtSource time.Time) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.Conn().ExecContext(ctx,
		`INSERT INTO clients (id, name) VALUES (?, ?)`, uuid.New(), "acme"); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if _, err := db.Conn().ExecContext(ctx,
		`INSERT INTO zones (id, client_id, source_tweet, settings_json) VALUES (?, ?, true, '{}')`,
		zoneID, uuid.New()); err != nil {
		t.Fatalf("seed zone: %v", err)
	}
	if _, err := db.Conn().ExecContext(ctx, `
		INSERT INTO items (id, zone_id, provider, provider_item_id, text, created_at_source)
		VALUES (?, ?, 'tweet', ?, 'hello world', ?)`,
		itemID, zoneID, itemID.String(), createdAtSource); err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func TestTracker_Refresh_FirstTickAssignsTierAndSchedulesNext(t *testing.T) {
	db := newTestDB(t)
	zoneID, itemID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	seedItem(t, db, zoneID, itemID, now.Add(-30*time.Minute))

	if _, err := db.UpsertTracking(context.Background(), itemID, models.TierUltraHot, nil, false); err != nil {
		t.Fatalf("seed tracking: %v", err)
	}

	fetcher := &fakeFetcher{responses: []fakeResponse{{counters: models.Counters{Like: 5, View: 50}}}}
	tr := New(db, map[models.Provider]CounterFetcher{models.ProviderTweet: fetcher}, testThresholds(), zerolog.Nop())
	tr.now = func() time.Time { return now }

	if err := tr.Refresh(context.Background(), itemID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	tracking, err := db.GetTracking(context.Background(), itemID)
	if err != nil {
		t.Fatalf("GetTracking: %v", err)
	}
	if tracking.Tier != models.TierUltraHot {
		t.Errorf("tier = %s, want ultra_hot", tracking.Tier)
	}
	if tracking.NextUpdateAt == nil {
		t.Fatal("NextUpdateAt is nil, want set")
	}
	if tracking.UpdateCount != 1 {
		t.Errorf("UpdateCount = %d, want 1", tracking.UpdateCount)
	}

	snaps, err := db.ListSnapshots(context.Background(), itemID)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("len(snaps) = %d, want 1", len(snaps))
	}
	// A first snapshot has no previous observation: deltas carry the full
	// counters and velocity is zero, so the first tick can never promote.
	if snaps[0].Deltas != snaps[0].Counters {
		t.Errorf("first snapshot deltas = %+v, want counters %+v", snaps[0].Deltas, snaps[0].Counters)
	}
	if snaps[0].Velocity != 0 {
		t.Errorf("first snapshot velocity = %f, want 0", snaps[0].Velocity)
	}
}

func TestTracker_Refresh_ProviderNotFoundMarksCold(t *testing.T) {
	db := newTestDB(t)
	zoneID, itemID := uuid.New(), uuid.New()
	now := time.Now().UTC()
	seedItem(t, db, zoneID, itemID, now.Add(-2*time.Hour))
	if _, err := db.UpsertTracking(context.Background(), itemID, models.TierHot, nil, false); err != nil {
		t.Fatalf("seed tracking: %v", err)
	}

	fetcher := &fakeFetcher{responses: []fakeResponse{{notFound: true}}}
	tr := New(db, map[models.Provider]CounterFetcher{models.ProviderTweet: fetcher}, testThresholds(), zerolog.Nop())
	tr.now = func() time.Time { return now }

	if err := tr.Refresh(context.Background(), itemID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	tracking, err := db.GetTracking(context.Background(), itemID)
	if err != nil {
		t.Fatalf("GetTracking: %v", err)
	}
	if tracking.Tier != models.TierCold {
		t.Errorf("tier = %s, want cold", tracking.Tier)
	}
	if tracking.NextUpdateAt != nil {
		t.Errorf("NextUpdateAt = %v, want nil", tracking.NextUpdateAt)
	}

	snaps, err := db.ListSnapshots(context.Background(), itemID)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("len(snaps) = %d, want 0 (no snapshot on not-found)", len(snaps))
	}
}

func TestTracker_Refresh_SecondTickComputesPredictions(t *testing.T) {
	db := newTestDB(t)
	zoneID, itemID := uuid.New(), uuid.New()
	t0 := time.Now().UTC().Add(-20 * time.Minute)
	seedItem(t, db, zoneID, itemID, t0)
	if _, err := db.UpsertTracking(context.Background(), itemID, models.TierUltraHot, nil, false); err != nil {
		t.Fatalf("seed tracking: %v", err)
	}

	fetcher := &fakeFetcher{responses: []fakeResponse{
		{counters: models.Counters{Like: 10}},
		{counters: models.Counters{Like: 40}},
	}}
	tr := New(db, map[models.Provider]CounterFetcher{models.ProviderTweet: fetcher}, testThresholds(), zerolog.Nop())

	firstTick := t0.Add(10 * time.Minute)
	tr.now = func() time.Time { return firstTick }
	if err := tr.Refresh(context.Background(), itemID); err != nil {
		t.Fatalf("Refresh #1: %v", err)
	}

	secondTick := firstTick.Add(10 * time.Minute)
	tr.now = func() time.Time { return secondTick }
	if err := tr.Refresh(context.Background(), itemID); err != nil {
		t.Fatalf("Refresh #2: %v", err)
	}

	tracking, err := db.GetTracking(context.Background(), itemID)
	if err != nil {
		t.Fatalf("GetTracking: %v", err)
	}
	if tracking.UpdateCount != 2 {
		t.Fatalf("UpdateCount = %d, want 2", tracking.UpdateCount)
	}

	var predictionsJSON string
	if err := db.Conn().QueryRowContext(context.Background(),
		`SELECT predictions_json FROM items WHERE id = ?`, itemID).Scan(&predictionsJSON); err != nil {
		t.Fatalf("query predictions_json: %v", err)
	}
	if predictionsJSON == "" {
		t.Fatal("predictions_json is empty, want velocity_linear_v1 blob written on update_count>=2")
	}
}
