package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ssd-technologies/cumulus/internal/config"
	"github.com/ssd-technologies/cumulus/internal/logging"
	"github.com/ssd-technologies/cumulus/internal/server"
	"github.com/ssd-technologies/cumulus/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("CUMULUS_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobs, closers, err := openBlobs(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("close blob store", "error", err)
			}
		}
	}()

	store := storage.New(storage.WithBlobs(blobs), storage.WithLogger(logger))
	owner, err := store.CreateUser(cfg.Storage.LimitBytes)
	if err != nil {
		logger.Error("failed to create user", "error", err)
		os.Exit(1)
	}

	srv := server.New(store, owner.ID,
		server.WithLogger(logger),
		server.WithMaxUploadSize(cfg.Server.MaxUploadBytes),
		server.WithUploadRate(cfg.Server.UploadRate, cfg.Server.UploadWindow),
		server.WithWorkerIntervals(cfg.Workers.ReconcileInterval, cfg.Workers.SweepInterval),
	)
	srv.StartWorkers(ctx)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("cumulus running",
		"addr", fmt.Sprintf("http://localhost:%s", cfg.Server.Port),
		"owner_id", owner.ID,
		"blob_backend", cfg.Storage.BlobBackend,
		"compress", cfg.Storage.Compress,
		"sealed", cfg.Storage.Secret != "")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", "error", err)
	}
}

// openBlobs builds the blob backend stack described by cfg: base backends,
// optionally striped, then sealed, then compressed. Data is compressed
// before it is sealed.
func openBlobs(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, []io.Closer, error) {
	var (
		blobs   storage.BlobStore
		closers []io.Closer
	)

	n := 1
	if cfg.DataShards > 0 {
		n = cfg.DataShards + cfg.ParityShards
	}
	backends := make([]storage.BlobStore, n)
	for i := range backends {
		switch cfg.BlobBackend {
		case config.BackendSQLite:
			if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
				return nil, nil, fmt.Errorf("create data dir: %w", err)
			}
			name := "blobs.db"
			if n > 1 {
				name = fmt.Sprintf("blobs-%d.db", i)
			}
			db, err := storage.OpenSQLiteBlobs(ctx, filepath.Join(cfg.DataDir, name))
			if err != nil {
				closeAll(closers)
				return nil, nil, err
			}
			backends[i] = db
			closers = append(closers, db)
		default:
			backends[i] = storage.NewMemBlobs()
		}
	}
	blobs = backends[0]

	if cfg.DataShards > 0 {
		sharded, err := storage.NewSharded(cfg.DataShards, cfg.ParityShards, backends)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		blobs = sharded
	}

	if cfg.Secret != "" {
		sealed, err := storage.NewSealed(blobs, cfg.Secret)
		if err != nil {
			closeAll(closers)
			return nil, nil, fmt.Errorf("blob encryption: %w", err)
		}
		blobs = sealed
	}

	if cfg.Compress {
		c, err := storage.NewCompressed(blobs)
		if err != nil {
			closeAll(closers)
			return nil, nil, fmt.Errorf("blob compression: %w", err)
		}
		blobs = c
		closers = append(closers, c)
	}
	return blobs, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}
