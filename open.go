/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datadirector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/storyofalicia/datadirector/config"
	"github.com/storyofalicia/datadirector/datastore"
	"github.com/storyofalicia/datadirector/datastore/ddb"
	"github.com/storyofalicia/datadirector/datastore/file"
	"github.com/storyofalicia/datadirector/datastore/redis"
)

// Open builds the configured backend and a DataDirector on top of it.
// Options passed here are applied after the ones derived from cfg.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts ...Option) (*DataDirector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	stores, err := openBackend(ctx, cfg, logger.With().Str("backend", cfg.Backend).Logger())
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger),
		WithNegativeCacheTTL(cfg.Director.NegativeCacheTTL.Std()),
	}
	if cfg.Director.SerializeBackend {
		base = append(base, WithSerializedBackends())
	}

	d, err := New(ctx, stores, append(base, opts...)...)
	if err != nil {
		if stores.Close != nil {
			_ = stores.Close(ctx)
		}
		return nil, err
	}
	return d, nil
}

func openBackend(ctx context.Context, cfg config.Config, logger zerolog.Logger) (datastore.Stores, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return file.New(cfg.File.Root, file.WithLogger(logger)).Stores(), nil

	case config.BackendRedis:
		return redis.Dial(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithLogger(logger),
		).Stores(), nil

	case config.BackendDynamoDB:
		client, err := ddb.NewDynamoDBClient(ctx, ddb.Credentials{
			AccessKey: cfg.DynamoDB.AccessKey,
			SecretKey: cfg.DynamoDB.SecretKey,
			Region:    cfg.DynamoDB.Region,
			Endpoint:  cfg.DynamoDB.Endpoint,
		})
		if err != nil {
			return datastore.Stores{}, fmt.Errorf("creating DynamoDB client: %w", err)
		}
		return ddb.New(client, cfg.DynamoDB.Table, ddb.WithLogger(logger)).Stores(), nil

	default:
		return datastore.Stores{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
