// Package application wires configuration, storage and the service layer
// together for the server and the CLI.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/vaultetl/internal/config"
	"github.com/JonMunkholm/vaultetl/internal/core"
	"github.com/JonMunkholm/vaultetl/internal/objectstore"
	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
)

// App holds the long-lived collaborators of a process.
type App struct {
	Config  *config.Config
	Store   store.Store
	Jobs    *core.JobRegistry
	Service *core.Service
}

// Open connects the configured store, migrates it when enabled and builds
// the service. Close releases everything Open acquired.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Migrate {
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	objects, err := openObjectStore(cfg.Storage)
	if err != nil {
		st.Close()
		return nil, err
	}

	jobs := core.NewJobRegistry()
	svc := core.NewService(st, jobs, core.Options{
		BatchSize:      cfg.Import.BatchSize,
		MaxConcurrent:  cfg.Import.MaxConcurrent,
		AcquireTimeout: cfg.Import.AcquireTimeout,
		JobTimeout:     cfg.Import.JobTimeout,
		Workers:        cfg.Vault.Workers,
		Vault: core.VaultSettings{
			Root:               cfg.Vault.Root,
			UseHexPadding:      cfg.Vault.UseHexPadding,
			AddFVExtension:     cfg.Vault.AddFVExtension,
			DefaultDestination: cfg.Vault.DefaultDestination,
		},
		Objects:      objects,
		ObjectRegion: cfg.Storage.Region,
	})

	return &App{Config: cfg, Store: st, Jobs: jobs, Service: svc}, nil
}

// Close drops the job registry and closes the store.
func (a *App) Close() {
	a.Jobs.Close()
	a.Store.Close()
}

// OpenStore opens the backend selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("opened sqlite database", "path", cfg.SQLitePath)
		return st, nil
	case "postgres", "":
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return store.NewPostgres(pool), nil
}

// openObjectStore returns nil when no endpoint is configured.
func openObjectStore(cfg config.StorageConfig) (*minio.Client, error) {
	oc := objectstore.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	}
	if !oc.Enabled() {
		return nil, nil
	}
	client, err := objectstore.NewMinIOClient(oc)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	slog.Info("object store enabled", "endpoint", cfg.Endpoint)
	return client, nil
}
