package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jonwraymond/offlinecache/cachestore"
	"github.com/jonwraymond/offlinecache/config"
)

func nopClose(context.Context) error { return nil }

// openStorage opens the configured backend and returns its closer.
func openStorage(ctx context.Context, cfg config.StoreConfig) (cachestore.Storage, func(context.Context) error, error) {
	switch cfg.Kind {
	case config.StoreMemory:
		return cachestore.NewMemoryStorage(), nopClose, nil

	case config.StoreDisk:
		s, err := cachestore.OpenDisk(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func(context.Context) error { return s.Close() }, nil

	case config.StoreSQLite:
		s, err := cachestore.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func(context.Context) error { return s.Close() }, nil

	case config.StoreS3:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		s, err := cachestore.NewS3Storage(client, cfg.Bucket, cfg.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, nopClose, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown store kind %q", config.ErrInvalid, cfg.Kind)
	}
}
