package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rechtsbron/internal/app"
	"rechtsbron/internal/platform/config"
	"rechtsbron/internal/platform/logger"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Serve(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
