// Command twin serves the digital twin investor demo.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/retrofitforge/twin"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := twin.New(ctx, twin.WithVersion(version))
	if err != nil {
		slog.Error("startup failed", "error", err)
		return 1
	}
	slog.SetDefault(app.Logger())

	if err := app.Run(ctx); err != nil {
		app.Logger().Error("fatal error", "error", err)
		return 1
	}
	return 0
}
