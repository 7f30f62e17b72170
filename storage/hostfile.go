package storage

import (
	"context"
	"fmt"
	"sync"
)

// HostFiles is the narrow file-namespace capability a home-automation
// host runtime exposes to adapters (mirrors ctx.api.iobroker.files in
// hostapi). It is intentionally minimal: this package never assumes a
// concrete host runtime, only this capability.
type HostFiles interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Mkdir(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Delete(ctx context.Context, path string) error
}

// HostFileBackend is a Backend implemented in terms of a host runtime's
// file namespace. Whether Rename is atomic depends entirely on the host;
// this package assumes the conservative case (no atomic rename, no
// native append) unless RenameCapable/AppendCapable are set true by the
// caller after probing (see msgarchive's native-vs-host probe).
type HostFileBackend struct {
	Files          HostFiles
	RenameCapable  bool
	AppendCapable  bool
}

// NewHostFileBackend wraps files as a Backend.
func NewHostFileBackend(files HostFiles) *HostFileBackend {
	return &HostFileBackend{Files: files}
}

// Init is a no-op: the host namespace root always exists.
func (h *HostFileBackend) Init(_ context.Context) error { return nil }

// ReadFile reads path via the host files capability.
func (h *HostFileBackend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	b, err := h.Files.Read(ctx, path)
	if err != nil {
		if isHostNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: host read %s: %v", ErrStorage, path, err)
	}
	return b, nil
}

// WriteFile writes path via the host files capability.
func (h *HostFileBackend) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := h.Files.Write(ctx, path, data); err != nil {
		return fmt.Errorf("%w: host write %s: %v", ErrStorage, path, err)
	}
	return nil
}

// AppendFile emulates append via read-modify-write. HostFiles has no
// append operation, so this holds whatever AppendCapable is set to.
func (h *HostFileBackend) AppendFile(ctx context.Context, path string, data []byte) error {
	existing, err := h.ReadFile(ctx, path)
	if err != nil && err != ErrNotFound {
		return err
	}
	return h.WriteFile(ctx, path, append(existing, data...))
}

// DeleteFile deletes path; absent paths are swallowed.
func (h *HostFileBackend) DeleteFile(ctx context.Context, path string) error {
	if err := h.Files.Delete(ctx, path); err != nil && !isHostNotFound(err) {
		return fmt.Errorf("%w: host delete %s: %v", ErrStorage, path, err)
	}
	return nil
}

// Exists probes existence via a read attempt (the host namespace
// capability set has no dedicated stat operation).
func (h *HostFileBackend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := h.Files.Read(ctx, path)
	if err == nil {
		return true, nil
	}
	if isHostNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: host stat %s: %v", ErrStorage, path, err)
}

// Rename delegates to the host's rename when RenameCapable, otherwise
// reports ok=false so the caller falls back to overwrite.
func (h *HostFileBackend) Rename(ctx context.Context, oldPath, newPath string) (bool, error) {
	if !h.RenameCapable {
		return false, nil
	}
	if err := h.Files.Rename(ctx, oldPath, newPath); err != nil {
		return false, fmt.Errorf("%w: host rename %s->%s: %v", ErrStorage, oldPath, newPath, err)
	}
	return true, nil
}

// SupportsAppend reports the probed append capability.
func (h *HostFileBackend) SupportsAppend() bool { return h.AppendCapable }

// SupportsRename reports the probed rename capability.
func (h *HostFileBackend) SupportsRename() bool { return h.RenameCapable }

type hostNotFoundError struct{ path string }

func (e *hostNotFoundError) Error() string { return fmt.Sprintf("host file not found: %s", e.path) }

// NewHostNotFoundError builds the sentinel error a HostFiles
// implementation should return for a missing path, so HostFileBackend
// can translate it to ErrNotFound.
func NewHostNotFoundError(path string) error { return &hostNotFoundError{path: path} }

func isHostNotFound(err error) bool {
	_, ok := err.(*hostNotFoundError)
	return ok
}

// MemHostFiles is an in-memory HostFiles implementation, standing in for
// a real host runtime in tests and demos.
type MemHostFiles struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemHostFiles returns an empty in-memory host file namespace.
func NewMemHostFiles() *MemHostFiles {
	return &MemHostFiles{files: make(map[string][]byte)}
}

func (m *MemHostFiles) Read(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.files[path]
	if !ok {
		return nil, NewHostNotFoundError(path)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemHostFiles) Write(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[path] = cp
	return nil
}

func (m *MemHostFiles) Mkdir(_ context.Context, _ string) error { return nil }

func (m *MemHostFiles) Rename(_ context.Context, oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[oldPath]
	if !ok {
		return NewHostNotFoundError(oldPath)
	}
	m.files[newPath] = b
	delete(m.files, oldPath)
	return nil
}

func (m *MemHostFiles) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}
