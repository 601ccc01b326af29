package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Serve starts an HTTP server exposing the Prometheus text exposition format
// at /metrics on addr. It runs until ctx is cancelled, at which point it is
// shut down with a short grace period. Intended to run in its own goroutine,
// on an address separate from the RTMP listener.
func Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if log != nil {
		log.Info("metrics server shutting down", "addr", addr)
	}
	return srv.Shutdown(shutdownCtx)
}
