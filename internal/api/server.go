// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/acme/autocert"

	"github.com/lkmcompany/gorgone/internal/config"
	"github.com/lkmcompany/gorgone/internal/logging"
)

// ServerService runs the ingress HTTP server as a suture service: Serve
// blocks until the context is canceled, then shuts down gracefully within
// the configured timeout. With TLS autocert enabled it serves HTTPS with
// Let's Encrypt certificates; otherwise plain HTTP (typically behind a
// TLS-terminating proxy).
type ServerService struct {
	cfg     config.ServerConfig
	handler http.Handler
}

// NewServerService wraps a router for supervision.
func NewServerService(cfg config.ServerConfig, handler http.Handler) *ServerService {
	return &ServerService{cfg: cfg, handler: handler}
}

// Serve implements suture.Service.
func (s *ServerService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	if s.cfg.TLS.AutocertEnabled {
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(s.cfg.TLS.Domains...),
			Cache:      autocert.DirCache(s.cfg.TLS.CacheDir),
		}
		srv.TLSConfig = &tls.Config{GetCertificate: manager.GetCertificate, MinVersion: tls.VersionTLS12}
		go func() {
			logging.Info().Str("addr", srv.Addr).Strs("domains", s.cfg.TLS.Domains).Msg("https server listening")
			errCh <- srv.ListenAndServeTLS("", "")
		}()
	} else {
		go func() {
			logging.Info().Str("addr", srv.Addr).Msg("http server listening")
			errCh <- srv.ListenAndServe()
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Warn().Err(err).Msg("http server shutdown incomplete")
	}
	return ctx.Err()
}
