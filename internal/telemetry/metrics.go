// Package telemetry provides application-level observability for the hiring pipeline.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<HPT_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Login and token refresh outcome counters
//   - Audit log write counters and failure counter
//   - Application stage-move counter
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/candidates/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as entity IDs.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening:
//
//	import _ "github.com/hiring-pipeline/hiring-pipeline/internal/telemetry"
//
// Or import it directly and use an exported var:
//
//	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /api/v1/applications/:id/stage),
// NOT the raw URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Authentication metrics — recorded by the auth handlers.
//
// LoginAttemptsTotal is a CounterVec with label {outcome} taking the values
// "success" and "failure".  The failure counter intentionally does not break down
// by cause: the API's rejection is generic, so the metric is too.
//
// Example PromQL queries:
//   - Failure ratio:          sum(rate(login_attempts_total{outcome="failure"}[15m])) / sum(rate(login_attempts_total[15m]))
//   - Brute-force alerting:   increase(login_attempts_total{outcome="failure"}[5m]) > 50
//
// TokenRefreshTotal uses the same {outcome} label for the refresh-token rotation
// endpoint.  A spike in failures can indicate token replay attempts.
var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Total number of refresh token rotations, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Audit metrics — recorded by the audit middleware.
//
// AuditEntriesTotal is a CounterVec with label {log_type} incremented once per
// persisted audit record.  The log_type values are the classifier's tags
// (Authentication, UserAction, BackgroundFetch, SystemOperation, DatabaseManagement).
//
// AuditWriteFailures is a plain Counter incremented when a classified record
// could not be written.  Audit writes are best-effort, so this counter is the
// only place a dropped record is visible; alert on any sustained increase.
//
// Example PromQL queries:
//   - Entries by type:  sum by (log_type) (rate(audit_entries_total[1h]))
//   - Alert:            increase(audit_write_failures_total[10m]) > 0
var (
	AuditEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit log entries written, by log type.",
		},
		[]string{"log_type"},
	)

	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of audit log entries that failed to persist.",
		},
	)

	// AuditRecordsSkipped counts classified requests the policy chose not to
	// persist (generic views). Skipping is deliberate, but the rate makes the
	// classifier's coverage visible.
	AuditRecordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_skipped_total",
			Help: "Total number of requests classified as not worth persisting.",
		},
	)
)

// StageMovesTotal is a CounterVec with label {to_stage} incremented whenever an
// application moves to a new pipeline stage.  Useful as a cheap funnel overview
// without querying the database.
//
// Example PromQL queries:
//   - Moves into onsite per day:  increase(stage_moves_total{to_stage="onsite"}[24h])
var StageMovesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stage_moves_total",
		Help: "Total number of application stage transitions, by destination stage.",
	},
	[]string{"to_stage"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <HPT_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
