package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/indexer"
	"github.com/0xADE/ade-launchd/internal/launch"
	"github.com/0xADE/ade-launchd/internal/runindex"
	"github.com/0xADE/ade-launchd/server"
	"github.com/gofrs/flock"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ade-launchd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile(), cfg.LogLevel())
	defer closeLog()
	slog.SetDefault(logger)

	// One daemon per socket
	if err := os.MkdirAll(filepath.Dir(cfg.UnixSocket()), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	lock := flock.New(cfg.LockFile())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("cannot acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another ade-launchd is running (lock: %s)", cfg.LockFile())
	}
	defer func() { _ = lock.Unlock() }()

	var (
		store       indexer.UsageStore
		cacheStatus server.CacheStatus
	)
	ri, err := openStore(cfg)
	if err != nil {
		// Launching works without history
		logger.Warn("usage store unavailable, running without persistence", "error", err)
	} else {
		ri.SetLogger(logger)
		defer ri.Close()
		store, cacheStatus = ri, ri
		logger.Info("usage store opened", "path", ri.Path())
	}

	idx := indexer.NewIndexer(cfg, store, indexer.WithLogger(logger))
	idx.Restore()

	launcher := launch.New(cfg.Terminal(), idx.Settings(), logger)
	srv, err := server.NewServer(cfg.UnixSocket(), idx, launcher,
		server.WithLogger(logger),
		server.WithListLimit(cfg.ListLimit()),
		server.WithCacheStatus(cacheStatus))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	go func() {
		if err := idx.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("initial indexing failed", "error", err)
		}
	}()

	if err := idx.Watch(ctx); err != nil {
		logger.Warn("file watching disabled", "error", err)
	}

	logger.Info("ade-launchd started", "socket", cfg.UnixSocket(), "entries", idx.GetIndex().Count())

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		idx.Stop()
		if err := srv.Stop(); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
		<-serverErr
	case err := <-serverErr:
		idx.Stop()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("ade-launchd stopped")
	return nil
}

func openStore(cfg *config.Config) (*runindex.RunIndex, error) {
	if dir := cfg.DataDir(); dir != "" {
		return runindex.NewRunIndexWithCacheDir(dir)
	}
	return runindex.NewRunIndex()
}
