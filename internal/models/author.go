// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package models

import (
	"time"

	"github.com/google/uuid"
)

// Author is the account that produced an item on a given provider. Authors
// are shared across zones and are effectively permanent: they are destroyed
// only by a retention job (out of scope here) once no Item references them.
type Author struct {
	ID                  uuid.UUID `json:"id"`
	Provider            Provider  `json:"provider"`
	ProviderUserID      string    `json:"provider_user_id"`
	Handle              string    `json:"handle"`
	DisplayName         string    `json:"display_name"`
	Verified            bool      `json:"verified"`
	FollowerCount       int64     `json:"follower_count"`
	FollowingCount      int64     `json:"following_count"`
	HeartCount          int64     `json:"heart_count"`
	PostCount           int64     `json:"post_count"`
	FirstSeenAt         time.Time `json:"first_seen_at"`
	LastSeenAt          time.Time `json:"last_seen_at"`
	LastUpdatedAt       time.Time `json:"last_updated_at"`
	TotalItemsCollected int64     `json:"total_items_collected"`
	Location            *string   `json:"location,omitempty"`
	Language            *string   `json:"language,omitempty"`
}

// CanonicalAuthor is the adapter-produced, pre-persistence shape of an
// author, keyed by (Provider, ProviderUserID) per the store's upsert
// contract. IncrementItems is the count to atomically add to
// total_items_collected on an upsert hit.
type CanonicalAuthor struct {
	Provider        Provider
	ProviderUserID  string
	Handle          string
	DisplayName     string
	Verified        bool
	FollowerCount   int64
	FollowingCount  int64
	HeartCount      int64
	PostCount       int64
	Location        *string
	Language        *string
	IncrementItems  int64
}
