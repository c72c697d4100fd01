// Package main provides the entry point for the clockd backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openclock/clockd/internal/server"
	"github.com/openclock/clockd/pkg/clock"
)

const stopTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	address     string
	dataDir     string
	showVersion bool
}

func parseFlags() options {
	opts := options{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.address, "address", "", "Listen address (overrides config)")
	flag.StringVar(&opts.dataDir, "data-dir", "", "State directory (overrides config)")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

func loadConfig(opts options) (*clock.Config, error) {
	cfg := clock.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := clock.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
	if opts.dataDir != "" {
		cfg.Server.DataDir = opts.dataDir
	}
	return cfg, nil
}

func setupLogger(cfg *clock.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("clockd version %s\n", server.Version)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := setupLogger(cfg)
	ctx := setupSignalHandler()

	app, err := clock.New(cfg, clock.Options{Logger: log, Version: server.Version})
	if err != nil {
		return fmt.Errorf("assembling backend: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("starting backend: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := app.Stop(sctx); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
	}()

	return server.New(app, log).Run(ctx)
}
