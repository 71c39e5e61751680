package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/skshohagmiah/flindb/internal/config"
	"github.com/skshohagmiah/flindb/internal/storage"
)

// openAdapter builds the persistence adapter named in the config.
func openAdapter(ctx context.Context, cfg *config.Config) (storage.Adapter, error) {
	switch cfg.Adapter {
	case config.AdapterMemory:
		return storage.NewMemoryAdapter(), nil

	case config.AdapterFile:
		c, err := storage.ParseCompression(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return storage.NewFileAdapter(cfg.DataDir, storage.WithCompression(c))

	case config.AdapterBadger:
		return storage.NewBadgerAdapter(filepath.Join(cfg.DataDir, "badger"))

	case config.AdapterSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
			path = filepath.Join(cfg.DataDir, "flindb.sqlite")
		}
		return storage.NewSQLiteAdapter(path)

	case config.AdapterS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
				o.UsePathStyle = true
			}
		})
		return storage.NewS3Adapter(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	}
	return nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
}
