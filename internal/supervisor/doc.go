// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

/*
Package supervisor provides process supervision for GORGONE using suture v4.

It implements a hierarchical supervisor tree managing the lifecycle of the
three independent worker pools:

	RootSupervisor ("gorgone")
	├── IngressSupervisor ("ingress-pool")
	│   └── HTTPServerService (webhooks, callbacks, health)
	├── JobSupervisor ("job-pool")
	│   ├── jobqueue.Dispatcher (per-topic workers, poll_rule ticks included)
	│   └── refresh sweeper (re-enqueues overdue snapshot ticks)
	└── RulePollSupervisor ("rulepoll-pool")
	    └── aggregate.Refresher (materialized read aggregates)

This isolates failures: a crash while dispatching a refresh_engagement job
restarts only the job pool, leaving ingress and rule polling unaffected.

# Usage

	logger := slog.Default()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	tree.AddIngressService(httpServerService)
	tree.AddJobService(dispatchService)
	tree.AddRulePollService(pollSchedulerService)
	if err := tree.Serve(ctx); err != nil {
	    log.Printf("supervisor stopped: %v", err)
	}

# Service interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning nil means clean stop (no restart); returning an error triggers a
restart with exponential backoff once FailureThreshold is exceeded.

# What is NOT supervised

DuckDB is an embedded library, not a long-running service; its connection
lifecycle is owned by internal/database. The BadgerDB inbound-webhook inbox
(internal/jobqueue/inbox) is opened and closed by cmd/server; its replay
runs once at startup before the tree starts serving.
*/
package supervisor
