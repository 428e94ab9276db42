// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production-ready defaults.
// These values match suture's built-in defaults per pkg.go.dev documentation.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// SupervisorTree manages GORGONE's three independent, restart-on-crash
// worker pools:
//
//   - ingress: the inbound HTTP server (webhooks, callbacks, health)
//   - jobs: the job-scheduler dispatch workers
//   - rulepoll: the per-rule poll-tick scheduler
//
// Failure isolation: a crash in the rule-poll scheduler restarts only that
// pool, leaving ingress and job dispatch unaffected.
type SupervisorTree struct {
	root     *suture.Supervisor
	ingress  *suture.Supervisor
	jobs     *suture.Supervisor
	rulepoll *suture.Supervisor
	logger   *slog.Logger
	config   TreeConfig
}

// NewSupervisorTree creates a new supervisor tree with the given configuration.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	// MustHook has a pointer receiver, so we need to take the address.
	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("gorgone", rootSpec)
	ingress := suture.New("ingress-pool", childSpec)
	jobs := suture.New("job-pool", childSpec)
	rulepoll := suture.New("rulepoll-pool", childSpec)

	root.Add(ingress)
	root.Add(jobs)
	root.Add(rulepoll)

	return &SupervisorTree{
		root:     root,
		ingress:  ingress,
		jobs:     jobs,
		rulepoll: rulepoll,
		logger:   logger,
		config:   config,
	}, nil
}

// Root returns the root supervisor for direct access if needed.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddIngressService adds a service to the ingress pool (HTTP server).
func (t *SupervisorTree) AddIngressService(svc suture.Service) suture.ServiceToken {
	return t.ingress.Add(svc)
}

// AddJobService adds a service to the job-dispatch pool.
func (t *SupervisorTree) AddJobService(svc suture.Service) suture.ServiceToken {
	return t.jobs.Add(svc)
}

// AddRulePollService adds a service to the rule-poll scheduler pool.
func (t *SupervisorTree) AddRulePollService(svc suture.Service) suture.ServiceToken {
	return t.rulepoll.Add(svc)
}

// Serve starts the supervisor tree and blocks until the context is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the supervisor tree in a background goroutine.
// Returns a channel that receives the error (or nil) when the supervisor stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport returns information about services that failed to
// stop within the configured shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// Remove removes a service from the tree by its token.
func (t *SupervisorTree) Remove(token suture.ServiceToken) error {
	for _, s := range []*suture.Supervisor{t.ingress, t.jobs, t.rulepoll, t.root} {
		if err := s.Remove(token); !errors.Is(err, suture.ErrWrongSupervisor) {
			return err
		}
	}
	return suture.ErrWrongSupervisor
}

// RemoveAndWait removes a service and waits for it to fully stop.
func (t *SupervisorTree) RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error {
	for _, s := range []*suture.Supervisor{t.ingress, t.jobs, t.rulepoll, t.root} {
		if err := s.RemoveAndWait(token, timeout); !errors.Is(err, suture.ErrWrongSupervisor) {
			return err
		}
	}
	return suture.ErrWrongSupervisor
}
