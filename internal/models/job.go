// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package models

import (
	"time"

	"github.com/google/uuid"
)

// Job is a durable, possibly delayed unit of deferred work. At most one
// inflight leaseholder exists per job; IdempotencyKey is unique while the
// job is non-terminal (pending or inflight).
type Job struct {
	ID              uuid.UUID  `json:"id"`
	Topic           string     `json:"topic"`
	Payload         []byte     `json:"payload"`
	RunAfter        time.Time  `json:"run_after"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	IdempotencyKey  *string    `json:"idempotency_key,omitempty"`
	State           JobState   `json:"state"`
	LeaseUntil      *time.Time `json:"lease_until,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DeadLetter is a terminal-failed job retained for operator inspection and
// replay.
type DeadLetter struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload"`
	LastError  string    `json:"last_error"`
	Attempts   int       `json:"attempts"`
	FailedAt   time.Time `json:"failed_at"`
}

// EmbeddingCache maps a content hash to a pre-computed embedding vector.
// ContentHash is the primary key; lookups are always exact.
type EmbeddingCache struct {
	ContentHash string    `json:"content_hash"`
	Vector      []float32 `json:"vector"`
	ModelID     string    `json:"model_id"`
	CreatedAt   time.Time `json:"created_at"`
}
