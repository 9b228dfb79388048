package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/featurebasedb/edp/logger"
)

// NewRouter returns a router serving /metrics from the default registry and
// a /healthz liveness check.
func NewRouter() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(router)
}

// Serve listens on addr until ctx is done. The returned channel yields the
// server's exit error, if any, and is closed when it has stopped.
func Serve(ctx context.Context, addr string, log logger.Logger) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "listening on %s", addr)
	}
	srv := &http.Server{
		Handler:           NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			done <- err
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Warnf("shutting down metrics server: %v", err)
		}
	}()
	log.Infof("serving metrics on http://%s/metrics", ln.Addr())
	return ln.Addr(), done, nil
}
