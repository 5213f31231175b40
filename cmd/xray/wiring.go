package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"xray-pipeline/internal/adapters/secondary/postgres"
	"xray-pipeline/internal/adapters/secondary/sqlite"
	"xray-pipeline/internal/config"
	"xray-pipeline/internal/core/domain"
	"xray-pipeline/internal/core/ports/output"
	"xray-pipeline/internal/core/services"
)

// runStore is the opened run repository plus its health check and cleanup.
// repo is nil when the store is disabled.
type runStore struct {
	repo  ports.RunRepository
	ping  func(ctx context.Context) error
	close func()
}

func openRunStore(ctx context.Context, cfg *config.Config) (*runStore, error) {
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite run store: %w", err)
		}
		log.WithField("path", cfg.Store.SQLitePath).Info("sqlite run store opened")
		return &runStore{
			repo:  sqlite.NewRunRepository(db),
			ping:  db.PingContext,
			close: func() { closeDB(db) },
		}, nil

	case config.StorePostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("create db pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping db: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("database connection established")
		return &runStore{
			repo:  postgres.NewRunRepository(pool),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil

	default:
		log.Info("run store disabled")
		return &runStore{
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("failed to close run store")
	}
}

func pipelineOptions(cfg *config.Config) services.PipelineOptions {
	p := cfg.Pipeline
	return services.PipelineOptions{
		Name:                p.Name,
		ArtifactRoot:        p.ArtifactDir,
		SourceDir:           p.SourceDir,
		TrainTestSplitRatio: p.TrainTestSplitRatio,
		Seed:                p.Seed,
		MinImagesPerClass:   p.MinImagesPerClass,
		ExpectedClasses:     p.ExpectedClasses,
		HiddenUnits:         p.HiddenUnits,
		TrainedModelPath:    p.TrainedModelPath,
		ExpectedAccuracy:    p.ExpectedAccuracy,
		OverfitThreshold:    p.OverfitThreshold,
	}
}

func paramsLoader(cfg *config.Config) services.ParamsLoader {
	path := cfg.Pipeline.ParamsFile
	return func() (domain.Params, error) {
		return config.LoadParams(path)
	}
}
