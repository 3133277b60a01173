// Package bootstrap builds the record and artefact store adapters selected
// by configuration. Both binaries share it so local CLI mode and the server
// talk to the same backends.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"model-artefact-registry/internal/adapters/secondary/awsutil"
	"model-artefact-registry/internal/adapters/secondary/dynamostore"
	"model-artefact-registry/internal/adapters/secondary/localfs"
	"model-artefact-registry/internal/adapters/secondary/postgres"
	"model-artefact-registry/internal/adapters/secondary/retrying"
	"model-artefact-registry/internal/adapters/secondary/s3store"
	"model-artefact-registry/internal/adapters/secondary/sqlite"
	"model-artefact-registry/internal/config"
	output "model-artefact-registry/internal/core/ports/output"
)

// Stores holds the opened adapters. Close releases connection pools and
// file handles.
type Stores struct {
	Records   output.ModelRecordRepository
	Artefacts output.ArtefactStore
	closers   []func()
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	stores := &Stores{}

	records, err := stores.openRecordStore(ctx, cfg)
	if err != nil {
		stores.Close()
		return nil, err
	}
	stores.Records = retrying.NewRecordStore(records, retrying.Options{
		Timeout:         cfg.Storage.Timeout,
		MaxAttempts:     cfg.Storage.MaxAttempts,
		InitialInterval: cfg.Storage.RetryInitialInterval,
	})

	artefacts, err := openArtefactStore(ctx, cfg)
	if err != nil {
		stores.Close()
		return nil, err
	}
	stores.Artefacts = artefacts

	return stores, nil
}

func (s *Stores) openRecordStore(ctx context.Context, cfg *config.Config) (output.ModelRecordRepository, error) {
	switch cfg.RecordStore {
	case config.RecordStorePostgres:
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
		s.closers = append(s.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping db: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		log.Info("postgres record store ready")
		return postgres.NewModelRecordRepository(pool), nil

	case config.RecordStoreDynamoDB:
		awsCfg, err := awsutil.Load(ctx, awsutil.Config{
			Region:          cfg.AWS.Region,
			Endpoint:        cfg.DynamoDB.Endpoint,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			MaxAttempts:     cfg.Storage.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		log.WithField("table", cfg.DynamoDB.Table).Info("dynamodb record store ready")
		return dynamostore.NewFromConfig(awsCfg, cfg.DynamoDB.Table), nil

	case config.RecordStoreSQLite:
		repo, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() {
			if err := repo.Close(); err != nil {
				log.WithError(err).Warn("close sqlite record store")
			}
		})
		log.WithField("path", cfg.SQLite.Path).Info("sqlite record store ready")
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown record store %q", cfg.RecordStore)
	}
}

func openArtefactStore(ctx context.Context, cfg *config.Config) (output.ArtefactStore, error) {
	switch cfg.ArtefactStore {
	case config.ArtefactStoreS3:
		awsCfg, err := awsutil.Load(ctx, awsutil.Config{
			Region:          cfg.AWS.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			MaxAttempts:     cfg.Storage.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		store := s3store.NewFromConfig(awsCfg, cfg.S3.Bucket)
		if cfg.Storage.AutoCreate {
			if err := store.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		log.WithField("bucket", cfg.S3.Bucket).Info("s3 artefact store ready")
		return store, nil

	case config.ArtefactStoreLocal:
		store, err := localfs.NewArtefactStore(cfg.Local.ArtefactDir)
		if err != nil {
			return nil, err
		}
		log.WithField("dir", cfg.Local.ArtefactDir).Info("local artefact store ready")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown artefact store %q", cfg.ArtefactStore)
	}
}
