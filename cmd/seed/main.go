// Command seed applies the YAML seed files to the configured stores and
// exits. Entities that already exist are left untouched.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/p-n-ai/pai-learn/internal/app"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dir := flag.String("dir", cfg.SeedPath, "directory of seed files")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger(cfg.Log, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	if _, err := a.Seed(ctx, *dir); err != nil {
		slog.Error("seeding failed", "path", *dir, "error", err)
		a.Close(context.Background())
		os.Exit(1)
	}
}
