// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package inbox durably stages inbound webhook bodies in BadgerDB before
// their DuckDB commit, so a provider push that already reached us survives
// a transient database outage or a process crash mid-ingest. Entries are
// confirmed (deleted) once the batch has been persisted; unconfirmed
// entries are replayed on startup.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is one staged webhook body awaiting (or having failed) ingestion.
type Entry struct {
	ID             string    `json:"id"`
	ReceivedAt     time.Time `json:"received_at"`
	RuleExternalID string    `json:"rule_external_id,omitempty"`
	Body           []byte    `json:"body"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"last_error,omitempty"`
}

// maxReplayAttempts bounds how often a poisoned entry is retried across
// restarts before it is dropped with an error log.
const maxReplayAttempts = 5

const keyPrefix = "inbox:"

// Inbox is a durable staging buffer for inbound webhook batches.
type Inbox struct {
	db     *badger.DB
	logger zerolog.Logger
	seq    atomic.Uint64
	closed atomic.Bool
}

// Open opens (or creates) the inbox at dir with synchronous writes: a
// staged entry must survive an immediate process kill.
func Open(dir string, logger zerolog.Logger) (*Inbox, error) {
	opts := badger.DefaultOptions(dir)
	opts.SyncWrites = true
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("inbox: open badger at %s: %w", dir, err)
	}
	return &Inbox{db: db, logger: logger.With().Str("component", "inbox").Logger()}, nil
}

// Close releases the underlying BadgerDB.
func (i *Inbox) Close() error {
	if i.closed.Swap(true) {
		return nil
	}
	return i.db.Close()
}

// Stage durably records a webhook body before any database work and
// returns the entry ID to confirm once the batch is committed.
func (i *Inbox) Stage(ctx context.Context, ruleExternalID string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entry := Entry{
		ID:             fmt.Sprintf("%d-%020d-%s", time.Now().UnixNano(), i.seq.Add(1), uuid.NewString()),
		ReceivedAt:     time.Now().UTC(),
		RuleExternalID: ruleExternalID,
		Body:           body,
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("inbox: marshal entry: %w", err)
	}

	err = i.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+entry.ID), value)
	})
	if err != nil {
		return "", fmt.Errorf("inbox: stage entry: %w", err)
	}
	return entry.ID, nil
}

// Confirm deletes a staged entry after its batch committed. Confirming an
// unknown entry is a no-op: replay may have already consumed it.
func (i *Inbox) Confirm(ctx context.Context, entryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return i.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(keyPrefix + entryID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Pending returns every unconfirmed entry, oldest first.
func (i *Inbox) Pending(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := i.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inbox: scan pending: %w", err)
	}
	return entries, nil
}

// Replay feeds each pending entry to ingest, confirming on success and
// bumping the attempt count on failure. Entries that exceed
// maxReplayAttempts are dropped with an error log rather than wedging
// startup forever. Returns how many entries were replayed and how many
// failed this pass.
func (i *Inbox) Replay(ctx context.Context, ingest func(ctx context.Context, e Entry) error) (replayed, failed int, err error) {
	pending, err := i.Pending(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, e := range pending {
		if e.Attempts >= maxReplayAttempts {
			i.logger.Error().
				Str("entry_id", e.ID).
				Int("attempts", e.Attempts).
				Str("last_error", e.LastError).
				Msg("dropping poisoned inbox entry")
			if cerr := i.Confirm(ctx, e.ID); cerr != nil {
				return replayed, failed, cerr
			}
			continue
		}

		if ierr := ingest(ctx, e); ierr != nil {
			failed++
			e.Attempts++
			e.LastError = ierr.Error()
			if uerr := i.update(e); uerr != nil {
				return replayed, failed, uerr
			}
			continue
		}

		if cerr := i.Confirm(ctx, e.ID); cerr != nil {
			return replayed, failed, cerr
		}
		replayed++
	}
	return replayed, failed, nil
}

func (i *Inbox) update(e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("inbox: marshal entry: %w", err)
	}
	return i.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+e.ID), value)
	})
}

// RunGC triggers one BadgerDB value-log garbage-collection pass; callers
// run it on a slow cadence. badger.ErrNoRewrite (nothing to collect) is
// not an error.
func (i *Inbox) RunGC() error {
	err := i.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Depth returns the number of unconfirmed entries, for the health report.
func (i *Inbox) Depth(ctx context.Context) (int, error) {
	entries, err := i.Pending(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
