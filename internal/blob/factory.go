package blob

import (
	"context"
	"fmt"
	"os"

	fsstore "sheltercore/internal/infra/blob/fs"
	memorystore "sheltercore/internal/infra/blob/memory"
	s3store "sheltercore/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	SHELTERCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	SHELTERCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./photodata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("SHELTERCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("SHELTERCORE_BLOB_FS_ROOT")
		return NewFilesystem(root)
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem constructs a filesystem-backed blob.Store rooted at the
// provided path. Returns blob.Store so call sites depend on the interface.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// NewMemory returns an in-memory blob.Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// S3Config re-exports the infra S3 configuration type.
type S3Config = s3store.Config

// NewS3 constructs an S3-backed blob.Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// NewMockS3ForTests exposes the lightweight in-memory mock for cross-package tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
