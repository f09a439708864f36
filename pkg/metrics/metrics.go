// Package metrics exposes run counters for Prometheus. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopfiles"

// Metrics holds all Prometheus metrics for a run
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched     prometheus.Counter
	PageErrors       prometheus.Counter
	Downloads        *prometheus.CounterVec
	DownloadRetries  prometheus.Counter
	ItemsSkipped     prometheus.Counter
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram
}

// New registers every metric on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages of the remote file listing fetched.",
		}),
		PageErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_errors_total",
			Help:      "Page requests that failed and ended pagination.",
		}),
		Downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Asset downloads by final result.",
		}, []string{"result"}),
		DownloadRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_retries_total",
			Help:      "Download attempts that were retried.",
		}),
		ItemsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Listed files skipped because they had no URL.",
		}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written by successful downloads.",
		}),
		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Wall time per asset including retries.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.PagesFetched.Inc()
}

func (m *Metrics) PageFailed() {
	if m == nil {
		return
	}
	m.PageErrors.Inc()
}

func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.DownloadRetries.Inc()
}

func (m *Metrics) Skipped() {
	if m == nil {
		return
	}
	m.ItemsSkipped.Inc()
}

// Downloaded records the final result of one asset
func (m *Metrics) Downloaded(success bool, bytes int64, d time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
		m.DownloadBytes.Add(float64(bytes))
	}
	m.Downloads.WithLabelValues(result).Inc()
	m.DownloadDuration.Observe(d.Seconds())
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
