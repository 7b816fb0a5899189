// Package fsutil provides the filesystem seam used for configuration,
// image sequences and sweep outputs.
package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSystem abstracts the filesystem operations a sweep performs.
// Use OSFileSystem for production; MemoryFileSystem for testing.
type FileSystem interface {
	// Open opens the named file for reading.
	Open(name string) (fs.File, error)

	// Create creates or truncates the named file.
	Create(name string) (io.WriteCloser, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Stat returns a FileInfo describing the named file.
	Stat(name string) (fs.FileInfo, error)

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// Exists checks if a file or directory exists.
	Exists(name string) bool
}

// CreateOutput creates the parent directory of path and then the file
// itself. Output files for CSV, charts and plots go through it.
func CreateOutput(fsys FileSystem, path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create output directory for %s: %w", path, err)
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create output file %s: %w", path, err)
	}
	return f, nil
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

func (OSFileSystem) Open(name string) (fs.File, error) { return os.Open(name) }

func (OSFileSystem) Create(name string) (io.WriteCloser, error) { return os.Create(name) }

func (OSFileSystem) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem is an in-memory FileSystem. Files written through Create
// become visible when the writer is closed.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string]*memFile
	dirs  map[string]bool
}

type memFile struct {
	data []byte
	mode os.FileMode
}

// NewMemoryFileSystem creates an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string]*memFile),
		dirs:  make(map[string]bool),
	}
}

func (m *MemoryFileSystem) Open(name string) (fs.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	f, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memReader{name: name, data: f.data}, nil
}

// Create truncates name immediately; the written bytes replace the
// contents on Close.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	m.files[name] = &memFile{mode: 0o644}
	return &memWriter{fs: m, name: name}, nil
}

func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	f, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), f.data...), nil
}

func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[filepath.Clean(name)] = &memFile{data: append([]byte(nil), data...), mode: perm}
	return nil
}

func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if m.dirs[name] {
		return &memInfo{name: filepath.Base(name), mode: fs.ModeDir | 0o755, isDir: true}, nil
	}
	f, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return &memInfo{name: filepath.Base(name), size: int64(len(f.data)), mode: f.mode}, nil
}

func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for p := filepath.Clean(path); p != "." && p != "/"; p = filepath.Dir(p) {
		if _, isFile := m.files[p]; isFile {
			return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
		}
		m.dirs[p] = true
	}
	return nil
}

func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	_, ok := m.files[name]
	return ok || m.dirs[name]
}

type memReader struct {
	name   string
	data   []byte
	offset int
}

func (r *memReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.offset:])
	r.offset += n
	return n, nil
}

func (r *memReader) Close() error { return nil }

func (r *memReader) Stat() (fs.FileInfo, error) {
	return &memInfo{name: filepath.Base(r.name), size: int64(len(r.data))}, nil
}

type memWriter struct {
	fs     *MemoryFileSystem
	name   string
	buf    []byte
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *memWriter) Close() error {
	if w.closed {
		return fs.ErrClosed
	}
	w.closed = true

	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.files[w.name] = &memFile{data: w.buf, mode: 0o644}
	return nil
}

type memInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	isDir bool
}

func (i *memInfo) Name() string       { return i.name }
func (i *memInfo) Size() int64        { return i.size }
func (i *memInfo) Mode() os.FileMode  { return i.mode }
func (i *memInfo) ModTime() time.Time { return time.Time{} }
func (i *memInfo) IsDir() bool        { return i.isDir }
func (i *memInfo) Sys() any           { return nil }
