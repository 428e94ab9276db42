// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package main is the entry point for the GORGONE server.
//
// GORGONE ingests social-media and news content for client zones from
// three external providers (a push-webhook tweet source, a polled
// short-video source, and a rule-driven news source), deduplicates and
// persists it, and maintains per-item engagement trajectories on a tiered
// refresh schedule.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered defaults -> config.yaml -> env
//  2. Logging: zerolog, JSON by default
//  3. Database: embedded DuckDB, schema migration at boot
//  4. Provider adapters: tweet (push), video + news (poll), embedding
//  5. Rule registry, engagement tracker, embedding cache service
//  6. Job queue: durable DuckDB-backed queue + dispatcher worker pools
//  7. Inbox recovery: replay webhook bodies staged before a crash
//  8. Supervisor tree: ingress HTTP server, job dispatcher, aggregate
//     refresher, refresh self-heal sweeper
//
// # Signal handling
//
// SIGINT/SIGTERM cancel the root context; the supervisor tree drains its
// services, then the queue, inbox, and database are closed in reverse
// dependency order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lkmcompany/gorgone/internal/aggregate"
	"github.com/lkmcompany/gorgone/internal/api"
	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/embedding"
	"github.com/lkmcompany/gorgone/internal/jobqueue"
	"github.com/lkmcompany/gorgone/internal/jobqueue/inbox"
	"github.com/lkmcompany/gorgone/internal/logging"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/orchestrator"
	"github.com/lkmcompany/gorgone/internal/provider"
	"github.com/lkmcompany/gorgone/internal/provider/news"
	"github.com/lkmcompany/gorgone/internal/provider/tweet"
	"github.com/lkmcompany/gorgone/internal/provider/video"
	"github.com/lkmcompany/gorgone/internal/rule"
	"github.com/lkmcompany/gorgone/internal/supervisor"
	"github.com/lkmcompany/gorgone/internal/tracker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gorgone: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger := logging.Logger()
	logger.Info().Msg("gorgone starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	// One resilient client (breaker + token bucket) per provider.
	tweetAdapter := tweet.New(cfg.Provider.Tweet, cfg.Provider)
	videoAdapter := video.New(cfg.Provider.Video, cfg.Provider)
	newsAdapter := news.New(cfg.Provider.News, cfg.Provider)
	embedClient := embedding.NewClient(cfg.Provider.Embedding, cfg.Provider)

	pulls := map[models.Provider]provider.PullAdapter{
		models.ProviderVideo: videoAdapter,
		models.ProviderNews:  newsAdapter,
	}
	fetchers := map[models.Provider]tracker.CounterFetcher{
		models.ProviderTweet: tweetAdapter,
		models.ProviderVideo: videoAdapter,
		models.ProviderNews:  newsAdapter,
	}

	thresholds := tracker.ThresholdsFromConfig(cfg.Tracker)
	trk := tracker.New(db, fetchers, thresholds, logger)
	registry := rule.New(db, tweetAdapter, logger)
	embedSvc := embedding.NewService(db, embedClient, cfg.Provider.Embedding.BatchSize, logger)

	queue, err := jobqueue.NewQueue(db, cfg.Queue, cfg.NATS, logger)
	if err != nil {
		return fmt.Errorf("open job queue: %w", err)
	}
	defer func() { _ = queue.Close() }()
	dispatcher := jobqueue.NewDispatcher(db, cfg.Queue, queue, logger)

	var ibx *inbox.Inbox
	if cfg.Queue.InboxWALDir != "" {
		ibx, err = inbox.Open(cfg.Queue.InboxWALDir, logger)
		if err != nil {
			return fmt.Errorf("open webhook inbox: %w", err)
		}
		defer func() { _ = ibx.Close() }()
	}

	orch := orchestrator.New(db, registry, queue, trk, embedSvc, ibx, tweetAdapter, pulls, thresholds, logger)
	orch.RegisterHandlers(dispatcher)

	// Replay staged-but-unconfirmed webhook bodies before accepting new
	// traffic, then re-seed poll ticks for active pull rules.
	if err := orch.RecoverInbox(ctx); err != nil {
		return fmt.Errorf("inbox recovery: %w", err)
	}
	if err := orch.BootstrapPolls(ctx); err != nil {
		return fmt.Errorf("poll bootstrap: %w", err)
	}

	breakers := map[string]api.BreakerStater{
		"tweet":     tweetAdapter.Client(),
		"video":     videoAdapter.Client(),
		"news":      newsAdapter.Client(),
		"embedding": embedClient.HTTPClient(),
	}
	handler := api.NewHandler(db, orch, registry, queue, dispatcher, tweetAdapter, cfg.Queue, cfg.Security, breakers)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("build supervisor tree: %w", err)
	}
	tree.AddIngressService(api.NewServerService(cfg.Server, handler.Router()))
	tree.AddJobService(dispatcher)
	tree.AddJobService(newRefreshSweeper(orch))
	tree.AddRulePollService(aggregate.NewRefresher(db, aggregate.DefaultInterval, logger))

	logger.Info().
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Path).
		Bool("nats", cfg.NATS.Enabled).
		Msg("gorgone ready")

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info().Msg("gorgone stopped")
	return nil
}

// refreshSweeper periodically re-enqueues snapshot ticks for tracked items
// whose next_update_at passed without a pending job, healing refresh jobs
// lost between lease and completion.
type refreshSweeper struct {
	orch *orchestrator.Orchestrator
}

func newRefreshSweeper(orch *orchestrator.Orchestrator) *refreshSweeper {
	return &refreshSweeper{orch: orch}
}

const (
	sweepInterval = 5 * time.Minute
	sweepBatch    = 500
)

func (s *refreshSweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if n, err := s.orch.SweepDueRefreshes(ctx, sweepBatch); err != nil {
			logging.Warn().Err(err).Msg("refresh sweep failed")
		} else if n > 0 {
			logging.Info().Int("reseeded", n).Msg("refresh sweep reseeded snapshots")
		}
	}
}
