// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package query

import (
	"testing"
	"time"
)

func TestWhereBuilder_Empty(t *testing.T) {
	wb := NewWhereBuilder()

	if !wb.IsEmpty() {
		t.Error("Expected new builder to be empty")
	}
	if wb.Count() != 0 {
		t.Errorf("Expected count 0, got %d", wb.Count())
	}

	whereClause, args := wb.Build()
	if whereClause != "1=1" {
		t.Errorf("Expected '1=1' for empty builder, got %q", whereClause)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestWhereBuilder_AddDateRange(t *testing.T) {
	wb := NewWhereBuilder()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)

	wb.AddDateRange("created_at_source", &start, &end)

	whereClause, args := wb.Build()
	expected := "created_at_source >= ? AND created_at_source <= ?"
	if whereClause != expected {
		t.Errorf("Expected %q, got %q", expected, whereClause)
	}
	if len(args) != 2 {
		t.Errorf("Expected 2 args, got %d", len(args))
	}
}

func TestWhereBuilder_AddDateRange_NilBoundsSkipped(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddDateRange("created_at_source", nil, nil)

	if !wb.IsEmpty() {
		t.Error("Expected builder to remain empty when both bounds are nil")
	}
}

func TestWhereBuilder_AddIn(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddIn("provider", []string{"tweet", "video", "news"})

	whereClause, args := wb.Build()
	expected := "provider IN (?, ?, ?)"
	if whereClause != expected {
		t.Errorf("Expected %q, got %q", expected, whereClause)
	}
	if len(args) != 3 {
		t.Errorf("Expected 3 args, got %d", len(args))
	}
}

func TestWhereBuilder_AddIn_EmptySkipped(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddIn("provider", nil)

	if !wb.IsEmpty() {
		t.Error("Expected builder to remain empty for an empty values slice")
	}
}

func TestWhereBuilder_AddZone(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddZone("")
	if !wb.IsEmpty() {
		t.Error("Expected AddZone(\"\") to be a no-op")
	}

	wb.AddZone("zone-1")
	whereClause, args := wb.Build()
	if whereClause != "zone_id = ?" {
		t.Errorf("Expected 'zone_id = ?', got %q", whereClause)
	}
	if len(args) != 1 || args[0] != "zone-1" {
		t.Errorf("Expected args [zone-1], got %v", args)
	}
}

func TestWhereBuilder_Chaining(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	wb := NewWhereBuilder().
		AddZone("zone-1").
		AddProviders([]string{"tweet"}).
		AddTiers([]string{"ultra_hot", "hot"}).
		AddDateRange("created_at_source", &start, nil)

	whereClause, args := wb.BuildWithPrefix()
	expected := "WHERE zone_id = ? AND provider IN (?) AND tier IN (?, ?) AND created_at_source >= ?"
	if whereClause != expected {
		t.Errorf("Expected %q, got %q", expected, whereClause)
	}
	if len(args) != 5 {
		t.Errorf("Expected 5 args, got %d", len(args))
	}
}

func TestWhereBuilder_AddClause(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddClause("counters_like > ?", 100)

	whereClause, args := wb.Build()
	if whereClause != "counters_like > ?" {
		t.Errorf("Expected 'counters_like > ?', got %q", whereClause)
	}
	if len(args) != 1 || args[0] != 100 {
		t.Errorf("Expected args [100], got %v", args)
	}
}
