package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjk/diary/log"
)

const shutdownTimeout = 5 * time.Second

func newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		ReadTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		Handler:           handler,
	}
}

// Serve serves handler on ln until ctx is cancelled or the process
// gets SIGINT / SIGTERM, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := newHTTPServer(handler)
	chServerClosed := make(chan error, 1)
	go func() {
		err := httpSrv.Serve(ln)
		// mute error caused by Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		chServerClosed <- err
	}()
	log.Logf("diary: serving on http://%s\n", ln.Addr())

	select {
	case err := <-chServerClosed:
		return err
	case <-ctx.Done():
	}

	log.Logf("diary: shutting down http server\n")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpSrv.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}
	return <-chServerClosed
}

// Run listens on addr (e.g. "127.0.0.1:8427") and calls Serve
func Run(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, handler)
}
