package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/coachpo/shimmer/internal/app"
	httpserver "github.com/coachpo/shimmer/internal/infra/server/http"
	"github.com/coachpo/shimmer/internal/observability"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// serve exposes the data API until ctx is cancelled.
func serve(ctx context.Context, opts cliOptions) error {
	a, cleanup, err := InitializeApp(ctx, app.Options{ConfigPath: opts.configPath, Format: "json"})
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:              opts.addr,
		Handler:           httpserver.NewHandler(a.Registry, a.Orchestrator),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var lifecycle conc.WaitGroup
	serveErr := make(chan error, 1)
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	})
	observability.Log().Info("data API listening", observability.F("addr", opts.addr))

	select {
	case <-ctx.Done():
		observability.Log().Info("shutdown signal received")
	case err := <-serveErr:
		lifecycle.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Log().Error("shutdown data API", observability.Err(err))
	}
	lifecycle.Wait()
	return nil
}
