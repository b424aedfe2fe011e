// Package metrics holds the Prometheus collectors shared by the HTTP executor
// and the project resolver. They are registered on a private registry so the
// stdio server never exposes anything unless a metrics address is configured.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitlab_review_http_requests_total",
			Help: "GitLab API requests by method and final HTTP status (0 for transport failures)",
		},
		[]string{"method", "status"},
	)

	httpRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gitlab_review_http_retries_total",
			Help: "GitLab API attempts that were retried after a transient failure",
		},
	)

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitlab_review_resolutions_total",
			Help: "Project identity resolutions by outcome and winning candidate source",
		},
		[]string{"outcome", "source"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpRetries,
		resolutions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveHTTPRequest counts one completed request attempt.
func ObserveHTTPRequest(method string, status int) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// ObserveRetry counts one retried attempt.
func ObserveRetry() {
	httpRetries.Inc()
}

// ObserveResolution counts a finished resolution. outcome is "verified" or the
// failure reason; source is empty on failure.
func ObserveResolution(outcome, source string) {
	resolutions.WithLabelValues(outcome, source).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

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
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	}
}
