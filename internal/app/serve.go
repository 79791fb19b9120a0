package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"rechtsbron/internal/platform/httpserver"
)

// Version is set at build time with -ldflags "-X rechtsbron/internal/app.Version=...".
var Version = "dev"

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// within the configured shutdown timeout.
func (a *App) Serve(ctx context.Context) error {
	router, err := a.Router(ctx)
	if err != nil {
		return err
	}
	srv := httpserver.New(a.Config.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("starting rechtsbron", "addr", a.Config.Server.Addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}
