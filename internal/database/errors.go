// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"io"
	"log/slog"
	"strings"

	"github.com/lkmcompany/gorgone/internal/logging"
)

// isUniqueViolation reports whether err is a DuckDB UNIQUE/PRIMARY KEY
// constraint violation. duckdb-go surfaces constraint errors as plain
// *duckdb.Error values without a typed code, so this matches on the
// driver's message text the way isTransactionConflict matches conflicts.
// A duplicate item or author insert is not an error condition: callers
// convert this into a result variant rather than propagating it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Constraint Error") &&
		(strings.Contains(msg, "violates primary key") ||
			strings.Contains(msg, "violates unique") ||
			strings.Contains(msg, "already exists"))
}

// closeWithLog closes a resource and logs any error
// Use this for cleanup operations where errors should be acknowledged but not fail the operation
func closeWithLog(closer io.Closer, logger *slog.Logger, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		if logger != nil {
			logger.Error("failed to close resource",
				"type", resourceType,
				"error", err)
		} else {
			// Fallback to logging if logger not available
			logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
		}
	}
}

// closeQuietly closes a resource and explicitly ignores any error
// Use this for cleanup operations in error paths where Close() errors are not actionable
// Satisfies errcheck linter by explicitly acknowledging the ignored error
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
