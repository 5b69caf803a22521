package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/swapflow/internal/reconcile"
)

// ShutdownTimeout bounds how long in-flight requests may finish after a stop signal.
const ShutdownTimeout = 5 * time.Second

// Serve runs the HTTP server and the reconciliation scheduler until ctx is
// cancelled, then drains both.
func Serve(ctx context.Context, app *App, out io.Writer) error {
	srv := &http.Server{
		Addr:              app.Config.Server.Addr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconcile.NewScheduler(app.Reconciler, app.Config.Reconcile.Interval).Start(bgCtx)
	}()
	defer func() {
		stopBackground()
		wg.Wait()
	}()

	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("Starting server", "addr", srv.Addr)
		printSystemMessage(out, "Listening on %s", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		printSystemMessage(out, "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("close server: %w", err)
			}
		}
		app.Logger.Info("Server stopped")
		return nil
	}
}
