// Package metrics provides Prometheus metrics for suno-downloader.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	itemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suno_items_processed_total",
			Help: "Items that reached a terminal outcome, by result",
		},
		[]string{"result"},
	)

	itemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "suno_item_duration_seconds",
			Help:    "Time from conversion trigger to terminal outcome",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 300},
		},
	)

	// Readiness probe metrics
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suno_readiness_probes_total",
			Help: "Asset readiness probes, by result",
		},
		[]string{"result"},
	)

	// Transfer metrics
	bytesDownloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suno_bytes_downloaded_total",
			Help: "Bytes written to local storage, by asset kind",
		},
		[]string{"kind"},
	)

	// HTTP client metrics
	httpRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suno_http_retries_total",
			Help: "Requests retried by the rate-limited client, by reason",
		},
		[]string{"reason"},
	)

	// Auth metrics
	credentialRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suno_credential_refresh_total",
			Help: "Credential fetches, by source and result",
		},
		[]string{"source", "result"},
	)
)

// RecordItem records a terminal item outcome ("done", "failed").
func RecordItem(result string, duration time.Duration) {
	itemsProcessedTotal.WithLabelValues(result).Inc()
	itemDuration.Observe(duration.Seconds())
}

// RecordProbe records one readiness probe ("ready", "not_ready").
func RecordProbe(result string) {
	probesTotal.WithLabelValues(result).Inc()
}

// RecordBytes adds n downloaded bytes for kind ("audio", "cover", "text").
func RecordBytes(kind string, n int64) {
	if n > 0 {
		bytesDownloaded.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordRetry records a retried HTTP request ("network", "rate_limited").
func RecordRetry(reason string) {
	httpRetriesTotal.WithLabelValues(reason).Inc()
}

// RecordCredential records a credential fetch attempt.
func RecordCredential(source string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	credentialRefreshTotal.WithLabelValues(source, result).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
