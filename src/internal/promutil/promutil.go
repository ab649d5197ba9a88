// Package promutil contains utilities for collecting and exporting Prometheus metrics.
package promutil

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"go.uber.org/zap"
)

// Adder is something that can be added to.
type Adder interface {
	Add(float64) // Implemented by prometheus.Counter.
}

// In the event that Prometheus changes their API, you'll be reading this comment.
var _ Adder = prometheus.NewCounter(prometheus.CounterOpts{})

// CountingReader exports a count of bytes read from an underlying io.Reader.
type CountingReader struct {
	io.Reader
	Counter Adder
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (n int, err error) {
	n, err = r.Reader.Read(p)
	r.Counter.Add(float64(n))
	return
}

// Handler serves the metrics of the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe serves /metrics on addr until ctx is cancelled; it then gracefully shuts down
// the server, returning once all requests have been handled.
func ListenAndServe(ctx context.Context, addr string) error {
	var (
		srv = http.Server{
			Addr:        addr,
			Handler:     Handler(),
			BaseContext: func(net.Listener) context.Context { return ctx },
			ErrorLog:    log.StdLogger(ctx, log.ErrorLevel),
		}
		errCh = make(chan error, 1)
	)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info(ctx, "serving metrics", zap.String("addr", addr))
	select {
	case <-ctx.Done():
		// NOTE: using context.Background here means that shutdown will
		// wait until all requests terminate.
		log.Info(ctx, "terminating metrics server due to cancelled context")
		return errors.EnsureStack(srv.Shutdown(context.Background()))
	case err := <-errCh:
		return errors.EnsureStack(err)
	}
}
