package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pinrelay/internal/ports"

	log "github.com/sirupsen/logrus"
)

const shutdownGrace = 15 * time.Second

func newServer(port int, clientStore ports.ClientStore, rateLimiter ports.RateLimiter, channel Channel, opts Options) (*http.Server, error) {
	h, err := NewHandler(clientStore, rateLimiter, channel, opts)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// RunServer runs the admin HTTP server until ctx is cancelled, then shuts it down gracefully.
// This is a blocking call.
func RunServer(ctx context.Context, port int,
	clientStore ports.ClientStore,
	rateLimiter ports.RateLimiter,
	channel Channel,
	opts Options,
) error {
	stop, done, err := RunServerInterruptible(port, clientStore, rateLimiter, channel, opts)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		close(stop)
		return <-done
	case err := <-done:
		close(stop)
		return err
	}
}

// RunServerInterruptible runs the server in the background in a Go routine and immediately returns a chan to
// the caller. The caller can then send a signal to the chan to gracefully shutdown the server.
// It's up to the caller to wait for in the main Go routine to keep the server running.
func RunServerInterruptible(port int,
	clientStore ports.ClientStore,
	rateLimiter ports.RateLimiter,
	channel Channel,
	opts Options,
) (stop chan<- struct{}, done <-chan error, err error) {
	srv, err := newServer(port, clientStore, rateLimiter, channel, opts)
	if err != nil {
		return nil, nil, err
	}

	// one-shot channels for control & completion
	stopCh := make(chan struct{})
	doneCh := make(chan error, 1) // buffered so goroutines can finish without blocking

	// server goroutine
	go func() {
		log.Infof("pinrelay listening on %s", srv.Addr)
		err := srv.ListenAndServe()
		// http.ErrServerClosed is returned on Shutdown; treat that as clean exit
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneCh <- err
			return
		}
		doneCh <- nil
	}()

	go func() {
		<-stopCh
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(ctx) // graceful; in-flight requests get time to finish
	}()
	return stopCh, doneCh, nil
}
