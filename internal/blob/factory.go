package blob

import (
	"fmt"

	"github.com/gracehamilton0/secret-picture/internal/config"
	"github.com/gracehamilton0/secret-picture/internal/market"
)

// NewBlobStoreFromConfig creates a BlobStore implementation based on the blob config type.
func NewBlobStoreFromConfig(cfg config.BlobConfig) (market.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Name), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 blob store requires s3_bucket to be set")
		}
		return NewS3Store(cfg.Name, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem blob store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.Name, cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}
