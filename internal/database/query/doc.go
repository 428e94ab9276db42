// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package query provides SQL query building utilities for the database package.
//
// This package reduces code duplication and provides type-safe query construction
// for parameterized SQL WHERE clauses. It ensures consistent parameter handling
// and prevents SQL injection vulnerabilities.
//
// # Overview
//
// The WhereBuilder is the primary component, providing a fluent interface for
// constructing WHERE clauses with properly parameterized queries:
//
//	wb := query.NewWhereBuilder()
//	wb.AddZone(zoneID)
//	wb.AddProviders([]string{"tweet", "video"})
//	wb.AddTiers([]string{"ultra_hot", "hot"})
//	whereClause, args := wb.Build()
//	// Result: "zone_id = ? AND provider IN (?, ?) AND tier IN (?, ?)"
//
// # Usage Example
//
//	func (s *ItemStore) ListByZone(ctx context.Context, zoneID string, f Filter) ([]models.Item, error) {
//	    wb := query.NewWhereBuilder()
//	    wb.AddZone(zoneID)
//	    wb.AddProviders(f.Providers)
//	    wb.AddDateRange("created_at_source", f.Since, f.Until)
//
//	    where, args := wb.Build()
//	    sql := fmt.Sprintf(`SELECT * FROM items WHERE %s ORDER BY created_at_source DESC LIMIT ?`, where)
//	    ...
//	}
//
// # SQL Injection Prevention
//
// All methods use parameterized queries with ? placeholders. Column names
// passed to AddIn/AddDateRange are caller-controlled constants, never raw
// user input.
//
// # Thread Safety
//
// WhereBuilder instances are not thread-safe. Create a new instance per query.
package query
