package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsweb"
)

// AttachDebugRoutes mounts the replay status and Prometheus exposition under
// /debug/. tsweb already serves its own expvar page at /debug/metrics, so the
// Prometheus registry lives at /debug/prometheus.
func AttachDebugRoutes(mux *http.ServeMux, status *RunStatus, gatherer prometheus.Gatherer) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	debug := tsweb.Debugger(mux)
	debug.Handle("prometheus", "Replay metrics (Prometheus)", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	debug.Handle("status", "Current replay run", status)
}

// ServeDebug runs an HTTP server on addr until ctx is done, then shuts it
// down with a short grace period.
func ServeDebug(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	Logf("debug server listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		Logf("debug server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			Logf("debug server force close error: %v", err)
		}
	}
	return nil
}
