// Package fsutil provides filesystem abstractions for testability.
package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned when writing to a closed in-memory file.
var ErrClosed = errors.New("file already closed")

// FileSystem abstracts the filesystem operations a recording session needs.
// Use OSFileSystem for production; MemoryFileSystem for testing.
type FileSystem interface {
	// Create creates the named file for writing. With exclusive set the
	// call fails with fs.ErrExist when the file already exists; otherwise
	// an existing file is truncated.
	Create(name string, exclusive bool) (io.WriteCloser, error)
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// Create opens name with O_EXCL when exclusive, O_TRUNC otherwise.
func (OSFileSystem) Create(name string, exclusive bool) (io.WriteCloser, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if exclusive {
		flags |= os.O_EXCL
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(name, flags, 0644)
}

// MemoryFileSystem provides an in-memory filesystem for testing. Writes are
// visible to ReadFile as soon as Write returns; ReadFile, WriteFile and
// Exists let tests seed and inspect files.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte

	// CreateErr, when set, is returned by every Create call.
	CreateErr error
	// CloseErr, when set, is returned by Close on every created file.
	CloseErr error
}

// NewMemoryFileSystem creates a new in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
	}
}

// Create creates or truncates a file.
func (m *MemoryFileSystem) Create(name string, exclusive bool) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, &fs.PathError{Op: "create", Path: name, Err: m.CreateErr}
	}

	name = filepath.Clean(name)
	if _, ok := m.files[name]; ok && exclusive {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
	}
	m.files[name] = []byte{}

	return &memFileWriter{fs: m, name: name, closeErr: m.CloseErr}, nil
}

// ReadFile reads a file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}

	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// WriteFile seeds a file, replacing any previous contents.
func (m *MemoryFileSystem) WriteFile(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(name)] = append([]byte(nil), data...)
}

// Exists reports whether the named file exists.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[filepath.Clean(name)]
	return ok
}

// memFileWriter appends straight into the backing map.
type memFileWriter struct {
	fs       *MemoryFileSystem
	name     string
	closed   bool
	closeErr error
}

func (f *memFileWriter) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}
	f.fs.files[f.name] = append(f.fs.files[f.name], p...)
	return len(p), nil
}

func (f *memFileWriter) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.closed = true
	return f.closeErr
}
