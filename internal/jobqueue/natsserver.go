// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/lkmcompany/gorgone/internal/config"
)

// embeddedNATS wraps an in-process NATS JetStream server, used when
// config.NATSConfig.EmbeddedServer is set so a single-instance deployment
// gets the wake-bus's cross-instance notification path without standing up
// an external NATS cluster.
type embeddedNATS struct {
	server    *server.Server
	clientURL string
}

func newEmbeddedNATS(cfg config.NATSConfig) (*embeddedNATS, error) {
	opts := &server.Options{
		ServerName:         "gorgone-jobqueue",
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		DontListen:         false,
		NoLog:              false,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}

	return &embeddedNATS{server: ns, clientURL: ns.ClientURL()}, nil
}

func (e *embeddedNATS) ClientURL() string { return e.clientURL }

func (e *embeddedNATS) Shutdown(ctx context.Context) {
	e.server.Shutdown()
	select {
	case <-ctx.Done():
	default:
		e.server.WaitForShutdown()
	}
}
