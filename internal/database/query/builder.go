// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package query provides SQL query building utilities for the database package.
// It reduces code duplication and provides type-safe query construction.
package query

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder constructs SQL WHERE clauses with parameterized arguments.
// It ensures consistent parameter handling and reduces SQL injection risks.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddDateRange("created_at_source", &startDate, &endDate)
//	wb.AddProviders([]string{"tweet", "video"})
//	whereClause, args := wb.Build()
//	// created_at_source >= ? AND created_at_source <= ? AND provider IN (?, ?)
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw WHERE clause with its arguments.
// This is useful for custom conditions not covered by helper methods.
//
// Parameters:
//   - clause: SQL condition fragment (e.g., "media_type = ?")
//   - args: Arguments to bind to placeholders in the clause
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddDateRange adds start and/or end filters on the given timestamp column.
// Nil bounds are skipped, allowing flexible date range queries.
//
// Parameters:
//   - column: the timestamp column to filter on (e.g. "created_at_source")
//   - startDate: Optional inclusive lower bound (nil to skip)
//   - endDate: Optional inclusive upper bound (nil to skip)
func (wb *WhereBuilder) AddDateRange(column string, startDate, endDate *time.Time) *WhereBuilder {
	if startDate != nil {
		wb.clauses = append(wb.clauses, column+" >= ?")
		wb.args = append(wb.args, *startDate)
	}
	if endDate != nil {
		wb.clauses = append(wb.clauses, column+" <= ?")
		wb.args = append(wb.args, *endDate)
	}
	return wb
}

// AddIn adds a column IN (...) filter. Generates "column IN (?, ?, ...)"
// with proper parameterization; an empty values slice is skipped.
func (wb *WhereBuilder) AddIn(column string, values []string) *WhereBuilder {
	if len(values) > 0 {
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			wb.args = append(wb.args, v)
		}
		wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	}
	return wb
}

// AddZone adds a zone_id equality filter, skipped when zoneID is empty.
func (wb *WhereBuilder) AddZone(zoneID string) *WhereBuilder {
	if zoneID != "" {
		wb.clauses = append(wb.clauses, "zone_id = ?")
		wb.args = append(wb.args, zoneID)
	}
	return wb
}

// AddProviders adds a provider IN (...) filter over Provider-typed values.
func (wb *WhereBuilder) AddProviders(providers []string) *WhereBuilder {
	return wb.AddIn("provider", providers)
}

// AddTiers adds a tier IN (...) filter over Tier-typed values.
func (wb *WhereBuilder) AddTiers(tiers []string) *WhereBuilder {
	return wb.AddIn("tier", tiers)
}

// Build constructs the final WHERE clause and returns it with arguments.
// Clauses are joined with "AND". Returns ("1=1", []) if no clauses were added.
//
// Returns:
//   - string: Complete WHERE clause (without "WHERE" keyword)
//   - []interface{}: Arguments to bind to placeholders
//
// Example:
//
//	whereClause, args := wb.Build()
//	query := fmt.Sprintf("SELECT * FROM table WHERE %s", whereClause)
//	db.Query(query, args...)
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the WHERE clause with "WHERE " prefix.
// Useful for direct SQL construction without manual prefix addition.
//
// Returns:
//   - string: Complete WHERE clause with "WHERE " prefix
//   - []interface{}: Arguments to bind to placeholders
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	whereClause, args := wb.Build()
	return "WHERE " + whereClause, args
}

// Count returns the number of clauses added to the builder.
// Useful for conditional logic based on filter complexity.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
