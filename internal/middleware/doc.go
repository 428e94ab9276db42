// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. The chi
router in internal/api adapts these http.HandlerFunc middlewares into its
func(http.Handler) http.Handler stack.

Key Components:

  - Compression: Gzip compression for clients that accept it
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The router applies the stack in this order:

	r.Use(chimiddleware.RealIP)                       // Layer 1: client IP
	r.Use(chimiddleware.Recoverer)                    // Layer 2: panic recovery
	r.Use(chiMiddleware(middleware.RequestID))        // Layer 3: request tracking
	r.Use(chiMiddleware(middleware.PrometheusMetrics))// Layer 4: metrics
	r.Use(perf.Middleware)                            // Layer 5: latency tracking
	r.Use(chiMiddleware(middleware.Compression))      // Layer 6: gzip

Usage Example - Compression:

	import "github.com/lkmcompany/gorgone/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/admin/dead-letters",
	    middleware.Compression(handler),
	)

	// Responses of any size are compressed
	// Accept-Encoding: gzip header is required

Usage Example - Performance Monitoring:

	// Create performance monitor
	perfMon := middleware.NewPerformanceMonitor(1000)

	// Wrap handler
	http.HandleFunc("/healthz",
	    perfMon.Middleware(handler),
	)

	// Get performance statistics
	for _, s := range perfMon.GetStats() {
	    fmt.Printf("%s p50: %v, p95: %v, p99: %v\n",
	        s.Path, s.P50Duration, s.P95Duration, s.P99Duration)
	}

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/webhook",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON (text/json mime types)
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)
  - Performance monitor: RWMutex-guarded window of latency samples

Compression Details:

The compression middleware:
  - Compresses every response when the client accepts gzip; there is no size threshold
  - Supports gzip encoding (Accept-Encoding: gzip)
  - Does not filter by MIME type
  - Automatically sets Content-Encoding header
  - Does not flush partial output; the gzip stream is closed when the handler returns

Performance Monitor:

The performance monitor tracks:
  - Request count and error rate
  - Latency percentiles (p50, p95, p99)
  - Rolling window of 1000 most recent requests
  - Thread-safe concurrent access with RWMutex

Thread Safety:

All middleware components are thread-safe:
  - Compression uses per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
