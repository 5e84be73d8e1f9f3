// Package metrics exposes allocation progress and process memory gauges in
// Prometheus exposition format. Everything here is observability only; the
// allocation loop behaves identically with metrics disabled.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luckerby/allocmem/internal/logging"
)

// Serve runs an HTTP listener exposing /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logging.Info(ctx, logging.ComponentMetrics, logging.ActionStart, "Metrics listener starting", map[string]interface{}{
		"addr": addr,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		} else {
			serverErr <- nil
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info(ctx, logging.ComponentMetrics, logging.ActionStop, "Metrics listener stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
