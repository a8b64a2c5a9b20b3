// Package app wires configuration, database, reference data and the ETL
// module together for the server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/charterops/internal/config"
	"github.com/JonMunkholm/charterops/internal/etl"
	"github.com/JonMunkholm/charterops/internal/refdata"
	"github.com/JonMunkholm/charterops/internal/store"
	"github.com/JonMunkholm/charterops/internal/store/gormstore"
	"github.com/JonMunkholm/charterops/internal/store/pgstore"
)

// App owns the long-lived dependencies of a process.
type App struct {
	Pool      *pgxpool.Pool
	Store     store.Store
	Directory *refdata.Directory
	Module    *etl.Module

	closers []func()
}

// Open connects to the database, loads reference data, selects the lead
// store backend and builds the ETL module. Close releases everything.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, rec etl.Recorder) (*App, error) {
	a := &App{}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	dir, err := refdata.Load(ctx, pool)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	a.Directory = dir
	logger.Info("reference data loaded",
		"agents", dir.Len(refdata.Agents),
		"yachts", dir.Len(refdata.Yachts),
		"users", dir.Len(refdata.Users),
	)

	st, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = st

	m, err := NewModule(cfg, st, dir, logger, rec)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Module = m
	return a, nil
}

// Close releases the database connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
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
	return pool, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case config.BackendGorm:
		db, err := gormstore.Open(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open gorm store: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, func() { sqlDB.Close() })
		}
		st := gormstore.New(db)
		if cfg.Store.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate leads: %w", err)
			}
		}
		return st, nil

	case config.BackendPostgres:
		st := pgstore.New(a.Pool)
		if cfg.Store.AutoMigrate {
			if err := st.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("ensure leads schema: %w", err)
			}
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// NewModule builds the ETL module from configuration over an already
// opened store.
func NewModule(cfg *config.Config, st store.Store, dir *refdata.Directory, logger *slog.Logger, rec etl.Recorder) (*etl.Module, error) {
	var kw *etl.Keywords
	if path := cfg.Import.KeywordsFile; path != "" {
		var err error
		if kw, err = etl.LoadKeywords(path); err != nil {
			return nil, err
		}
		logger.Info("keyword tables loaded", "path", path)
	}

	return etl.New(etl.Options{
		Store:     st,
		Directory: dir,
		Keywords:  kw,
		IDPrefix:  cfg.Import.IDPrefix,
		WriteWait: cfg.Import.WriteWait,
		Logger:    logger,
		Recorder:  rec,
	})
}
