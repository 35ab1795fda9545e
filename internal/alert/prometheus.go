package alert

import (
	"context"
	"net/http"
	"time"

	"sentinel-guard/internal/client"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// PrometheusExporter exposes watcher metrics over HTTP
type PrometheusExporter struct {
	server   *http.Server
	metrics  *client.StreamMetrics
	registry *prometheus.Registry
	logger   *logrus.Logger
	port     string
}

// NewPrometheusExporter builds an exporter serving registry. Metrics are
// registered on the same registry.
func NewPrometheusExporter(port string, registry *prometheus.Registry, logger *logrus.Logger) *PrometheusExporter {
	metrics := client.NewStreamMetrics(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`
			<h1>SentinelGuard Watcher</h1>
			<p><a href="/metrics">Metrics</a></p>
			<p><a href="/health">Health Check</a></p>
		`))
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &PrometheusExporter{
		server:   server,
		metrics:  metrics,
		registry: registry,
		logger:   logger,
		port:     port,
	}
}

// Start serves until ctx is done, then shuts the server down.
func (e *PrometheusExporter) Start(ctx context.Context) error {
	e.logger.Infof("Starting Prometheus exporter on port %s", e.port)
	e.logger.Infof("Metrics available at: http://localhost:%s/metrics", e.port)

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Errorf("Failed to start Prometheus exporter: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.logger.Info("Shutting down Prometheus exporter...")
	return e.server.Shutdown(shutdownCtx)
}

func (e *PrometheusExporter) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return e.server.Shutdown(ctx)
}

func (e *PrometheusExporter) GetMetrics() *client.StreamMetrics {
	return e.metrics
}

// Handler returns the exporter's HTTP handler.
func (e *PrometheusExporter) Handler() http.Handler {
	return e.server.Handler
}

// CreateCustomRegistry returns a registry with Go runtime and process collectors.
func CreateCustomRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return registry
}

// StartPrometheusExporterWithCustomRegistry creates an exporter on a fresh
// registry; call Start to serve it.
func StartPrometheusExporterWithCustomRegistry(port string, logger *logrus.Logger) (*PrometheusExporter, error) {
	return NewPrometheusExporter(port, CreateCustomRegistry(), logger), nil
}
