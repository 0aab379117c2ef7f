// Command kvlog-server serves a kvlog store over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kvlog/config"
	"kvlog/server"
	"kvlog/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	kv, err := store.Open(cfg.Store.DataDir, cfg.StoreOptions())
	if err != nil {
		logger.Error("failed to open store", "data_dir", cfg.Store.DataDir, "error", err)
		os.Exit(1)
	}
	logger.Info("store opened", "data_dir", cfg.Store.DataDir, "stats", kv.Stats().String())

	srv := server.New(kv, server.Options{
		ListenAddress:       cfg.Server.ListenAddress,
		DebugEnabled:        cfg.Server.DebugEnabled,
		CompactionThreshold: cfg.Store.CompactionThreshold,
	}, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	case err := <-serveErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	if err := kv.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
		os.Exit(1)
	}
	logger.Info("store closed")
}
