// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lkmcompany/gorgone/internal/models"
)

// EnqueueJob inserts a new job, or returns the existing non-terminal job
// sharing the same idempotency key as a no-op. DuckDB has no partial
// unique index, so the non-terminal-uniqueness check is a
// transaction-scoped SELECT-then-INSERT.
func (db *DB) EnqueueJob(ctx context.Context, topic string, payload []byte, runAfter time.Time, idempotencyKey *string, maxAttempts int) (models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if idempotencyKey != nil {
		existing, err := scanJob(tx.QueryRowContext(ctx, `
			SELECT id, topic, payload, run_after, attempts, max_attempts, idempotency_key,
				state, lease_until, last_error, created_at, updated_at
			FROM jobs WHERE topic = ? AND idempotency_key = ? AND state IN ('pending', 'inflight')`,
			topic, *idempotencyKey))
		if err == nil {
			return existing, tx.Commit()
		}
		if err != sql.ErrNoRows {
			return models.Job{}, fmt.Errorf("lookup idempotent job: %w", err)
		}
	}

	job := models.Job{
		ID:             uuid.New(),
		Topic:          topic,
		Payload:        payload,
		RunAfter:       runAfter,
		MaxAttempts:    maxAttempts,
		IdempotencyKey: idempotencyKey,
		State:          models.JobStatePending,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, topic, payload, run_after, attempts, max_attempts, idempotency_key, state)
		VALUES (?, ?, ?, ?, 0, ?, ?, 'pending')`,
		job.ID, job.Topic, job.Payload, job.RunAfter, job.MaxAttempts, job.IdempotencyKey)
	if err != nil {
		return models.Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job, tx.Commit()
}

// LeaseNextJob implements the leased-row dispatch pattern adapted for
// DuckDB, which has no `FOR UPDATE SKIP LOCKED`: a single-writer
// transaction selects the oldest due pending job, marks it inflight with a
// lease deadline, and returns it. DuckDB's optimistic concurrency control
// means a concurrent lease attempt fails the whole transaction with a
// "Transaction conflict" error rather than blocking; callers should retry
// on isTransactionConflict via ErrLeaseConflict.
func (db *DB) LeaseNextJob(ctx context.Context, topic string, leaseDuration time.Duration) (*models.Job, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, `
		SELECT id, topic, payload, run_after, attempts, max_attempts, idempotency_key,
			state, lease_until, last_error, created_at, updated_at
		FROM jobs
		WHERE topic = ? AND state = 'pending' AND run_after <= CURRENT_TIMESTAMP
		ORDER BY run_after ASC LIMIT 1`, topic))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if isTransactionConflict(err) {
			return nil, ErrLeaseConflict
		}
		return nil, fmt.Errorf("select due job: %w", err)
	}

	leaseUntil := time.Now().Add(leaseDuration)
	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = 'inflight', lease_until = ?, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = 'pending'`, leaseUntil, job.ID)
	if err != nil {
		if isTransactionConflict(err) {
			return nil, ErrLeaseConflict
		}
		return nil, fmt.Errorf("lease job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Another leaser won the race between our SELECT and UPDATE.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease: %w", err)
	}

	job.State = models.JobStateInflight
	job.LeaseUntil = &leaseUntil
	job.Attempts++
	return &job, nil
}

// ErrLeaseConflict signals a DuckDB optimistic-concurrency conflict on the
// job table; the caller (internal/jobqueue) retries the lease attempt.
var ErrLeaseConflict = fmt.Errorf("jobs: lease conflict, retry")

// ReclaimExpiredLeases resets jobs whose lease has expired without being
// completed back to pending, so a crashed worker's job is retried rather
// than wedged inflight forever.
func (db *DB) ReclaimExpiredLeases(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'pending', lease_until = NULL
		WHERE state = 'inflight' AND lease_until IS NOT NULL AND lease_until < CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CompleteJob marks a job done.
func (db *DB) CompleteJob(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx, `
		UPDATE jobs SET state = 'done', lease_until = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// FailJob records a handler error and either reschedules the job at
// nextRunAfter (exponential backoff, still under max_attempts) or marks it
// terminally failed and writes a dead_letters row (max_attempts exhausted),
// for operator inspection and replay.
func (db *DB) FailJob(ctx context.Context, job models.Job, handlerErr error, nextRunAfter time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	errMsg := ""
	if handlerErr != nil {
		errMsg = handlerErr.Error()
	}

	if job.Attempts < job.MaxAttempts {
		_, err := db.conn.ExecContext(ctx, `
			UPDATE jobs SET state = 'pending', lease_until = NULL, run_after = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, nextRunAfter, errMsg, job.ID)
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = 'failed', lease_until = NULL, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, errMsg, job.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letters (id, job_id, topic, payload, last_error, attempts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New(), job.ID, job.Topic, job.Payload, errMsg, job.Attempts); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDeadLetters returns dead-lettered jobs for operator inspection/replay.
func (db *DB) ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, job_id, topic, payload, last_error, attempts, failed_at
		FROM dead_letters ORDER BY failed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DeadLetter
	for rows.Next() {
		var d models.DeadLetter
		if err := rows.Scan(&d.ID, &d.JobID, &d.Topic, &d.Payload, &d.LastError, &d.Attempts, &d.FailedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ReplayDeadLetter re-enqueues a dead-lettered job's payload under the same
// idempotency key convention as its topic, giving the operator a manual
// retry path without bypassing idempotency.
func (db *DB) ReplayDeadLetter(ctx context.Context, dl models.DeadLetter, maxAttempts int) (models.Job, error) {
	lookupCtx, cancel := db.ensureContext(ctx)
	var key sql.NullString
	err := db.conn.QueryRowContext(lookupCtx, `SELECT idempotency_key FROM jobs WHERE id = ?`, dl.JobID).Scan(&key)
	cancel()
	if err != nil && err != sql.ErrNoRows {
		return models.Job{}, fmt.Errorf("lookup dead-lettered job: %w", err)
	}
	var idempotencyKey *string
	if key.Valid {
		idempotencyKey = &key.String
	}
	return db.EnqueueJob(ctx, dl.Topic, dl.Payload, time.Now(), idempotencyKey, maxAttempts)
}

// PendingJobDepth returns the number of pending jobs per topic, feeding the
// queue-depth gauge and the health endpoint's backlog report.
func (db *DB) PendingJobDepth(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT topic, COUNT(*) FROM jobs WHERE state = 'pending' GROUP BY topic`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	depth := make(map[string]int64)
	for rows.Next() {
		var topic string
		var n int64
		if err := rows.Scan(&topic, &n); err != nil {
			return nil, err
		}
		depth[topic] = n
	}
	return depth, rows.Err()
}

func scanJob(row *sql.Row) (models.Job, error) {
	var j models.Job
	var idempotencyKey sql.NullString
	var leaseUntil sql.NullTime
	err := row.Scan(&j.ID, &j.Topic, &j.Payload, &j.RunAfter, &j.Attempts, &j.MaxAttempts, &idempotencyKey,
		&j.State, &leaseUntil, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return models.Job{}, err
	}
	if idempotencyKey.Valid {
		j.IdempotencyKey = &idempotencyKey.String
	}
	if leaseUntil.Valid {
		j.LeaseUntil = &leaseUntil.Time
	}
	return j, nil
}
