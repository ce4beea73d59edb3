// Package metrics exposes operation and query counters over a
// Prometheus endpoint. Collection is optional; a disabled collector is
// a no-op so callers never have to branch on configuration.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbfs/dbfs/internal/config"
	"github.com/dbfs/dbfs/pkg/types"
)

const namespace = "dbfs"

// Collector records filesystem operation and query execution metrics.
type Collector struct {
	cfg      config.MetricsConfig
	logger   *slog.Logger
	registry *prometheus.Registry

	operationCounter    *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	materializeCounter  *prometheus.CounterVec
	materializeBytes    *prometheus.HistogramVec
	materializeDuration *prometheus.HistogramVec
	queryFailureCounter *prometheus.CounterVec

	server *http.Server
}

// NewCollector builds a collector for the given configuration. When
// metrics are disabled the collector records nothing and Start is a
// no-op.
func NewCollector(cfg config.MetricsConfig, logger *slog.Logger) (*Collector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{cfg: cfg, logger: logger}
	if !cfg.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of filesystem operations",
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of filesystem operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"operation"},
	)

	c.materializeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materializations_total",
			Help:      "Total number of view file materializations",
		},
		[]string{"server", "format"},
	)

	c.materializeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "materialization_size_bytes",
			Help:      "Size of materialized view content in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"server"},
	)

	c.materializeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "materialization_duration_seconds",
			Help:      "Duration of view materializations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"server"},
	)

	c.queryFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "Total number of failed remote queries",
		},
		[]string{"server"},
	)

	for _, metric := range []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.materializeCounter,
		c.materializeBytes,
		c.materializeDuration,
		c.queryFailureCounter,
	} {
		if err := c.registry.Register(metric); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Start serves the metrics endpoint in the background.
func (c *Collector) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.cfg.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", "error", err)
		}
	}()

	c.logger.Info("metrics endpoint started", "port", c.cfg.Port, "path", c.cfg.Path)
	return nil
}

// Stop shuts the metrics endpoint down.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records one filesystem operation.
func (c *Collector) RecordOperation(operation string, duration time.Duration, success bool) {
	if !c.cfg.Enabled {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.operationCounter.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordMaterialization records one completed view materialization.
func (c *Collector) RecordMaterialization(server string, format types.FileFormat, duration time.Duration, bytes int) {
	if !c.cfg.Enabled {
		return
	}
	c.materializeCounter.WithLabelValues(server, format.String()).Inc()
	c.materializeBytes.WithLabelValues(server).Observe(float64(bytes))
	c.materializeDuration.WithLabelValues(server).Observe(duration.Seconds())
}

// RecordQueryFailure records one failed remote query.
func (c *Collector) RecordQueryFailure(server string) {
	if !c.cfg.Enabled {
		return
	}
	c.queryFailureCounter.WithLabelValues(server).Inc()
}

var _ types.MetricsCollector = (*Collector)(nil)
