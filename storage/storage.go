// Package storage provides the C1 storage-backend abstraction: read,
// write and delete bytes at a path under a logical root, with optional
// atomic rename support. Grounded on the teacher's CacheEngine dual
// (memory/redis) implementation pattern — one interface, one
// in-process-file implementation and one native-filesystem
// implementation.
package storage

import (
	"context"
	"errors"
)

// Errors recognized by all Backend implementations.
var (
	ErrNotFound      = errors.New("storage: path not found")
	ErrStorage       = errors.New("storage: backend operation failed")
	ErrRenameNoop    = errors.New("storage: backend does not support rename")
)

// Backend reads, writes and deletes bytes at a path under a logical
// root. Implementations differ in whether they support an OS-level
// atomic rename.
type Backend interface {
	// Init ensures the logical root (and any base directory) exists.
	Init(ctx context.Context) error

	// ReadFile returns the bytes at path, or ErrNotFound if absent.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile writes data to path, creating parent directories as
	// needed, overwriting any existing content.
	WriteFile(ctx context.Context, path string, data []byte) error

	// AppendFile appends data to path, creating it if absent. A backend
	// without a native append emulates it with a read-modify-write;
	// SupportsAppend reports which, so callers can choose their own
	// read-modify-write path ahead of time.
	AppendFile(ctx context.Context, path string, data []byte) error

	// DeleteFile removes path. Not an error if the path is already
	// absent.
	DeleteFile(ctx context.Context, path string) error

	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)

	// Rename atomically replaces newPath's content with oldPath's, when
	// the backend supports it. Returns ok=false (no error) when the
	// backend cannot do this atomically, so the caller can fall back to
	// a direct overwrite.
	Rename(ctx context.Context, oldPath, newPath string) (ok bool, err error)

	// SupportsAppend reports whether AppendFile is a true native append
	// rather than a read-modify-write emulation.
	SupportsAppend() bool

	// SupportsRename reports whether Rename can be atomic.
	SupportsRename() bool
}
