// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lkmcompany/gorgone/internal/models"
)

// UpsertAuthor matches an author by (provider, provider_user_id). On a hit
// it updates statistics and last_updated_at=now and atomically bumps
// total_items_collected by a.IncrementItems. On a miss it inserts a new
// row. A unique-violation race between the SELECT and INSERT (two
// concurrent first-sightings of the same author) is retried once.
func (db *DB) UpsertAuthor(ctx context.Context, a models.CanonicalAuthor) (uuid.UUID, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	id, err := db.upsertAuthorOnce(ctx, a)
	if err != nil && isUniqueViolation(err) {
		return db.upsertAuthorOnce(ctx, a)
	}
	return id, err
}

func (db *DB) upsertAuthorOnce(ctx context.Context, a models.CanonicalAuthor) (uuid.UUID, error) {
	var existing uuid.UUID
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM authors WHERE provider = ? AND provider_user_id = ?`,
		string(a.Provider), a.ProviderUserID).Scan(&existing)

	switch {
	case err == nil:
		_, uerr := db.conn.ExecContext(ctx, `
			UPDATE authors SET
				handle = ?, display_name = ?, verified = ?,
				follower_count = ?, following_count = ?, heart_count = ?, post_count = ?,
				location = ?, language = ?,
				last_seen_at = CURRENT_TIMESTAMP, last_updated_at = CURRENT_TIMESTAMP,
				total_items_collected = total_items_collected + ?
			WHERE id = ?`,
			lowerHandle(a.Handle), a.DisplayName, a.Verified,
			a.FollowerCount, a.FollowingCount, a.HeartCount, a.PostCount,
			a.Location, a.Language, a.IncrementItems, existing)
		if uerr != nil {
			return uuid.Nil, fmt.Errorf("update author: %w", uerr)
		}
		return existing, nil

	case err == sql.ErrNoRows:
		id := uuid.New()
		_, ierr := db.conn.ExecContext(ctx, `
			INSERT INTO authors (
				id, provider, provider_user_id, handle, display_name, verified,
				follower_count, following_count, heart_count, post_count,
				first_seen_at, last_seen_at, last_updated_at, total_items_collected,
				location, language
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP,
				CURRENT_TIMESTAMP, ?, ?, ?)`,
			id, string(a.Provider), a.ProviderUserID, lowerHandle(a.Handle), a.DisplayName, a.Verified,
			a.FollowerCount, a.FollowingCount, a.HeartCount, a.PostCount,
			a.IncrementItems, a.Location, a.Language)
		if ierr != nil {
			return uuid.Nil, ierr
		}
		return id, nil

	default:
		return uuid.Nil, fmt.Errorf("lookup author: %w", err)
	}
}

// GetAuthor loads an author by internal ID.
func (db *DB) GetAuthor(ctx context.Context, id uuid.UUID) (*models.Author, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var a models.Author
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, provider, provider_user_id, handle, display_name, verified,
			follower_count, following_count, heart_count, post_count,
			first_seen_at, last_seen_at, last_updated_at, total_items_collected,
			location, language
		FROM authors WHERE id = ?`, id).Scan(
		&a.ID, &a.Provider, &a.ProviderUserID, &a.Handle, &a.DisplayName, &a.Verified,
		&a.FollowerCount, &a.FollowingCount, &a.HeartCount, &a.PostCount,
		&a.FirstSeenAt, &a.LastSeenAt, &a.LastUpdatedAt, &a.TotalItemsCollected,
		&a.Location, &a.Language)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func lowerHandle(h string) string {
	return strings.ToLower(h)
}
