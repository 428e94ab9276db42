// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/metrics"
	"github.com/lkmcompany/gorgone/internal/models"
)

// Handler processes one leased job. Returning an error reschedules the job
// with backoff until max_attempts is exhausted. Handlers must be
// idempotent: delivery is at-least-once.
type Handler func(ctx context.Context, job models.Job) error

// handlerDeadlines bounds a single handler invocation per topic. Topics
// not listed fall back to defaultHandlerDeadline.
var handlerDeadlines = map[string]time.Duration{
	models.TopicRefreshEngagement: 60 * time.Second,
	models.TopicSnapshotItem:      60 * time.Second,
	models.TopicPollRule:          120 * time.Second,
	models.TopicBackfillRule:      120 * time.Second,
	models.TopicVectorize:         120 * time.Second,
}

const defaultHandlerDeadline = 60 * time.Second

// Dispatcher leases due jobs from the durable queue and runs them through
// registered topic handlers with per-topic worker pools. It implements
// suture.Service and restarts cleanly: all state lives in the jobs table.
type Dispatcher struct {
	db       *database.DB
	cfg      config.QueueConfig
	bus      *wakeBus
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher builds a dispatcher sharing the queue's wake bus.
func NewDispatcher(db *database.DB, cfg config.QueueConfig, queue *Queue, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		db:       db,
		cfg:      cfg,
		bus:      queue.bus,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// Register binds a topic to its handler. Registration must complete before
// Serve starts; later registrations are ignored by running workers' topic
// snapshot.
func (d *Dispatcher) Register(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = h
}

func (d *Dispatcher) handler(topic string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[topic]
	return h, ok
}

func (d *Dispatcher) concurrency(topic string) int {
	if n, ok := d.cfg.Concurrency[topic]; ok && n > 0 {
		return n
	}
	if d.cfg.DefaultConcurrency > 0 {
		return d.cfg.DefaultConcurrency
	}
	return 1
}

// Serve runs the per-topic worker pools plus the lease-reclaim and
// queue-depth loops until ctx is canceled. It satisfies suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.mu.RLock()
	topics := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		topics = append(topics, t)
	}
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for _, topic := range topics {
		for i := 0; i < d.concurrency(topic); i++ {
			wg.Add(1)
			go func(topic string) {
				defer wg.Done()
				d.workerLoop(ctx, topic)
			}(topic)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.maintenanceLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// workerLoop drains one topic: lease, invoke, complete/fail, repeat. With
// no due work it sleeps until the poll interval elapses or a wake message
// arrives for the topic.
func (d *Dispatcher) workerLoop(ctx context.Context, topic string) {
	wake, err := d.bus.listen(ctx, topic)
	if err != nil {
		d.logger.Warn().Err(err).Str("topic", topic).Msg("wake bus subscribe failed, polling only")
		wake = nil
	}

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := d.db.LeaseNextJob(ctx, topic, d.cfg.LeaseDuration)
		switch {
		case errors.Is(err, database.ErrLeaseConflict):
			// Another worker's transaction won; try again immediately.
			continue
		case err != nil:
			d.logger.Error().Err(err).Str("topic", topic).Msg("lease attempt failed")
			d.sleep(ctx, wake)
			continue
		case job == nil:
			d.sleep(ctx, wake)
			continue
		}

		d.run(ctx, *job)
	}
}

func (d *Dispatcher) sleep(ctx context.Context, wake <-chan *message.Message) {
	timer := time.NewTimer(d.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case m, ok := <-wake:
		if ok && m != nil {
			m.Ack()
		}
	}
}

// run invokes the topic handler under its deadline, then settles the job.
func (d *Dispatcher) run(ctx context.Context, job models.Job) {
	handler, ok := d.handler(job.Topic)
	if !ok {
		// A topic with no handler is a deploy mismatch; fail it so it
		// retries after the next rollout rather than looping hot.
		d.settleFailure(ctx, job, fmt.Errorf("no handler registered for topic %s", job.Topic))
		return
	}

	deadline, ok := handlerDeadlines[job.Topic]
	if !ok {
		deadline = defaultHandlerDeadline
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := d.now()
	err := handler(jobCtx, job)
	metrics.RecordJobDispatch(job.Topic, d.now().Sub(start))

	if err != nil {
		d.logger.Warn().Err(err).
			Str("topic", job.Topic).
			Str("job_id", job.ID.String()).
			Int("attempt", job.Attempts).
			Msg("job handler failed")
		d.settleFailure(ctx, job, err)
		return
	}

	if cerr := d.db.CompleteJob(ctx, job.ID); cerr != nil {
		d.logger.Error().Err(cerr).Str("job_id", job.ID.String()).Msg("complete job failed")
	}
}

func (d *Dispatcher) settleFailure(ctx context.Context, job models.Job, handlerErr error) {
	if job.Attempts < job.MaxAttempts {
		metrics.JobsRetriedTotal.WithLabelValues(job.Topic).Inc()
	} else {
		metrics.JobsFailedTotal.WithLabelValues(job.Topic).Inc()
	}
	next := d.now().Add(d.backoff(job.Attempts))
	if err := d.db.FailJob(ctx, job, handlerErr, next); err != nil {
		d.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("fail job failed")
	}
}

// backoff grows exponentially from RetryInitialBackoff, capped at
// RetryMaxBackoff. attempts is the count already consumed, so the first
// retry waits one initial-backoff interval.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	initial := d.cfg.RetryInitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	exp := float64(initial) * math.Pow(2, float64(attempts-1))
	if limit := float64(d.cfg.RetryMaxBackoff); limit > 0 && exp > limit {
		exp = limit
	}
	return time.Duration(exp)
}

// Invoke runs a topic handler synchronously for an already-verified inbound
// queue callback (the managed-queue delivery path), bypassing the local
// lease cycle. The callback body is the job payload.
func (d *Dispatcher) Invoke(ctx context.Context, topic string, payload []byte) error {
	handler, ok := d.handler(topic)
	if !ok {
		return fmt.Errorf("jobqueue: no handler registered for topic %s", topic)
	}

	deadline, dok := handlerDeadlines[topic]
	if !dok {
		deadline = defaultHandlerDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := d.now()
	err := handler(ctx, models.Job{Topic: topic, Payload: payload, MaxAttempts: d.cfg.MaxAttempts})
	metrics.RecordJobDispatch(topic, d.now().Sub(start))
	return err
}

// maintenanceLoop reclaims expired leases and refreshes the queue-depth
// gauge every five poll intervals (every 5s when that is under a second).
func (d *Dispatcher) maintenanceLoop(ctx context.Context) {
	interval := d.cfg.PollInterval * 5
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if n, err := d.db.ReclaimExpiredLeases(ctx); err != nil {
			d.logger.Error().Err(err).Msg("reclaim expired leases failed")
		} else if n > 0 {
			d.logger.Warn().Int64("reclaimed", n).Msg("reclaimed expired job leases")
		}

		depth, err := d.db.PendingJobDepth(ctx)
		if err != nil {
			continue
		}
		for topic, n := range depth {
			metrics.JobQueueDepth.WithLabelValues(topic).Set(float64(n))
		}
	}
}
