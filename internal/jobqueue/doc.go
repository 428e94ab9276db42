// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

/*
Package jobqueue implements the durable delayed-job scheduler that drives
vectorization, engagement refreshes, and rule polls.

The jobs table in DuckDB is the single source of truth: Queue.Enqueue
writes a pending row (collapsing duplicate enqueues by idempotency key) and
Dispatcher leases due rows with per-topic worker pools, invoking the
registered handler under a per-topic deadline. A failed handler reschedules
the job with exponential backoff until max_attempts, after which the job is
terminally failed and copied to the dead-letter table for operator replay.

Delivery is at-least-once; handlers are expected to be idempotent. The
wake bus (Watermill GoChannel in-process, or NATS JetStream when
configured) only shortens the latency between an enqueue and the next
lease attempt — losing a wake message costs latency, never correctness.

The inbox subpackage durably stages inbound webhook bodies in BadgerDB
before their database commit, so a transient DuckDB outage cannot drop a
batch the provider already delivered.
*/
package jobqueue
