// Package blob selects the object store backups are written to.
package blob

import (
	"context"
	"fmt"

	"tfdcore/internal/blob/core"
	"tfdcore/internal/infra/blob/fs"
	"tfdcore/internal/infra/blob/memory"
	"tfdcore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend.
	Driver = core.Driver
	// Store is the interface every backend implements.
	Store = core.Store
	// Info describes a stored blob.
	Info = core.Info
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// S3Config configures the S3 backend.
	S3Config = s3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

// Options selects and configures a backend. An empty Driver means fs.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFilesystem:
		return fs.New(opts.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", opts.Driver)
	}
}
