// Package app assembles the running system from configuration: the storage
// backend, the in-memory working set, the service, metrics and backups.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tfdcore/internal/backup"
	"tfdcore/internal/blob"
	"tfdcore/internal/config"
	"tfdcore/internal/core"
	"tfdcore/internal/infra/persistence/memory"
	"tfdcore/pkg/domain"
)

// App holds the wired components of one process.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *memory.Store
	Persister domain.Persister
	Service   *core.Service
	Backups   *backup.Manager
	Registry  *prometheus.Registry
}

// New opens the configured backend, hydrates the working set from it and
// builds the service on top.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	log := NewZapLogger(logger)

	persister, err := core.OpenPersister(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(cfg.StorageDriver),
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
	})
	if err != nil {
		return nil, err
	}

	store := memory.NewStore(core.NewDefaultRulesEngine())
	snap, err := core.Hydrate(ctx, persister, store)
	if err != nil {
		_ = persister.Close()
		return nil, fmt.Errorf("hydrate: %w", err)
	}
	logger.Info("working set loaded",
		zap.String("driver", persister.Driver()),
		zap.Int("records", lo.Sum(lo.Values(snap.Counts()))))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetrics(reg)
	if err != nil {
		_ = persister.Close()
		return nil, err
	}

	svc := core.NewService(store, persister,
		core.WithLocation(cfg.Location()),
		core.WithLogger(log),
		core.WithMetricsRecorder(metrics),
		core.WithPersistRetry(uint64(cfg.PersistMaxRetries), cfg.PersistBackoff),
		core.WithPersistenceListener(func(out core.PersistOutcome) {
			if out.Err != nil {
				logger.Error("persistence failed; memory and storage diverge until the next write",
					zap.String("operation", out.Operation), zap.Int("jobs", out.Jobs), zap.Error(out.Err))
			}
		}),
	)

	blobs, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(cfg.BlobDriver),
		FSRoot: cfg.BlobFSRoot,
		S3: blob.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			SessionToken:    cfg.S3SessionToken,
			PathStyle:       cfg.S3PathStyle,
		},
	})
	if err != nil {
		_ = svc.Close(ctx)
		_ = persister.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	backups := backup.NewManager(blobs, backup.WithRetention(cfg.BackupRetention), backup.WithLogger(log))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Persister: persister,
		Service:   svc,
		Backups:   backups,
		Registry:  reg,
	}, nil
}

// RunBackups takes periodic snapshots of the working set until ctx is done.
// It returns at once when no interval is configured.
func (a *App) RunBackups(ctx context.Context) {
	if a.Config.BackupInterval <= 0 {
		return
	}
	a.Logger.Info("scheduled backups enabled", zap.Duration("interval", a.Config.BackupInterval))
	a.Backups.Run(ctx, a.Config.BackupInterval, a.Store.ExportState)
}

// Close drains pending persistence work and releases the backend.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.shutdownTimeout())
	defer cancel()
	return errors.Join(a.Service.Close(ctx), a.Persister.Close())
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Config.ShutdownTimeout > 0 {
		return a.Config.ShutdownTimeout
	}
	return 10 * time.Second
}
