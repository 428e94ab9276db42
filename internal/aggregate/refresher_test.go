// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/models"
)

func TestRefreshAllMaterializesAggregates(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	zoneID := uuid.New()
	if _, err := db.Conn().ExecContext(ctx, `
		INSERT INTO zones (id, client_id, source_tweet, is_active) VALUES (?, ?, true, true)`,
		zoneID, uuid.New()); err != nil {
		t.Fatalf("seed zone: %v", err)
	}

	location := "Lyon"
	authorID, err := db.UpsertAuthor(ctx, models.CanonicalAuthor{
		Provider:       models.ProviderTweet,
		ProviderUserID: "U1",
		Handle:         "prolific",
		Location:       &location,
		IncrementItems: 1,
	})
	if err != nil {
		t.Fatalf("seed author: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, err := db.InsertItemIfAbsent(ctx, zoneID, models.CanonicalItem{
			Provider:        models.ProviderTweet,
			ProviderItemID:  "T" + string(rune('1'+i)),
			Text:            "post",
			CreatedAtSource: time.Now().Add(-time.Hour),
			Counters:        models.Counters{Like: 10, View: 100},
		}, &authorID)
		if err != nil {
			t.Fatalf("seed item %d: %v", i, err)
		}
	}

	r := NewRefresher(db, DefaultInterval, zerolog.Nop())
	if err := r.RefreshAll(ctx); err != nil {
		t.Fatalf("refresh all: %v", err)
	}

	var rank int
	var handle string
	var items int64
	err = db.Conn().QueryRowContext(ctx, `
		SELECT rank, handle, item_count FROM agg_top_authors
		WHERE zone_id = ? AND window_seconds = ?`, zoneID, int64((24*time.Hour).Seconds())).
		Scan(&rank, &handle, &items)
	if err != nil {
		t.Fatalf("top authors row: %v", err)
	}
	if rank != 1 || handle != "prolific" || items != 3 {
		t.Errorf("top author = rank %d %q items %d, want 1/prolific/3", rank, handle, items)
	}

	var itemCount, totalLikes int64
	err = db.Conn().QueryRowContext(ctx, `
		SELECT item_count, total_likes FROM agg_overview
		WHERE zone_id = ? AND window_seconds = ?`, zoneID, int64((24*time.Hour).Seconds())).
		Scan(&itemCount, &totalLikes)
	if err != nil {
		t.Fatalf("overview row: %v", err)
	}
	if itemCount != 3 || totalLikes != 30 {
		t.Errorf("overview = %d items %d likes, want 3/30", itemCount, totalLikes)
	}

	var loc string
	err = db.Conn().QueryRowContext(ctx, `
		SELECT location FROM agg_zone_locations WHERE zone_id = ?`, zoneID).Scan(&loc)
	if err != nil {
		t.Fatalf("locations row: %v", err)
	}
	if loc != "Lyon" {
		t.Errorf("location = %q, want Lyon", loc)
	}

	// A second refresh replaces rather than duplicates.
	if err := r.RefreshAll(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	var n int
	if err := db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM agg_zone_locations WHERE zone_id = ?`, zoneID).Scan(&n); err != nil {
		t.Fatalf("count locations: %v", err)
	}
	if n != 1 {
		t.Errorf("locations rows = %d, want 1", n)
	}
}
