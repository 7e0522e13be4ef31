package app

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/vecsearch/blobstore"
	"github.com/hupe1980/vecsearch/blobstore/minio"
	"github.com/hupe1980/vecsearch/blobstore/s3"
	"github.com/hupe1980/vecsearch/internal/config"
	"github.com/hupe1980/vecsearch/resource"
	"github.com/hupe1980/vecsearch/snapshot"
)

// OpenBlobStore returns the snapshot store of collection. Every collection
// gets its own root so that each keeps its own CURRENT pointer.
func OpenBlobStore(ctx context.Context, cfg config.SnapshotConfig, collection string) (blobstore.BlobStore, error) {
	root := path.Join(cfg.Prefix, collection)

	switch cfg.Backend {
	case "local":
		return blobstore.NewLocalStore(filepath.Join(cfg.LocalDir, collection)), nil
	case "s3":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		store := s3.NewStore(awss3.NewFromConfig(awsCfg), cfg.Bucket, root)
		if cfg.DynamoDBTable == "" {
			return store, nil
		}

		baseURI := "s3://" + path.Join(cfg.Bucket, root)
		return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, baseURI), nil
	case "minio":
		client, err := minio.NewClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return minio.NewStore(client, cfg.Bucket, root), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

// NewSyncer returns a snapshot syncer for collection with the configured
// transfer limits.
func (a *App) NewSyncer(ctx context.Context, collection string) (*snapshot.Syncer, error) {
	store, err := OpenBlobStore(ctx, a.Config.Snapshot, collection)
	if err != nil {
		return nil, err
	}

	return snapshot.New(store,
		snapshot.WithController(resource.NewController(a.Config.Snapshot.Transfers)),
		snapshot.WithLogger(a.Logger.With("collection", collection)),
	), nil
}
