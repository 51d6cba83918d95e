// Package archive stores finished backtest results on a local filesystem or
// an S3-compatible object store.
package archive

import (
	"context"

	"github.com/newthinker/tradesim/internal/config"
	"github.com/newthinker/tradesim/internal/core"
)

// Storage defines the interface for archive storage backends. Read and
// Delete of a missing path return core.ErrNotFound.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Open creates the backend selected by cfg.Type.
func Open(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "localfs":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(S3Config(cfg.S3))
	case "":
		return nil, core.Errorf(core.ErrConfigMissing, "storage type not configured")
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown storage type %q", cfg.Type)
	}
}
