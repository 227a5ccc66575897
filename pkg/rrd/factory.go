package rrd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iamNilotpal/rrdpool/pkg/errors"
	"github.com/iamNilotpal/rrdpool/pkg/filesys"
)

// Factory constructs archive handles. Implementations decide where the
// archive data lives; only file-backed factories can serve the pool.
type Factory interface {
	// Name identifies the backend kind.
	Name() string

	// FileBacked reports whether handles map onto real files on disk.
	FileBacked() bool

	// Open returns a handle to an existing archive.
	Open(path string) (*Database, error)

	// Create writes a fresh archive described by def and returns a handle
	// to it. An existing file at the target path is replaced.
	Create(def *Def) (*Database, error)

	// Import creates a fresh archive at path from an XML dump file.
	Import(path, xmlPath string) (*Database, error)
}

var (
	defaultMu      sync.RWMutex
	defaultFactory Factory = NewFileFactory()
)

// DefaultFactory returns the process-wide factory used when a pool is not
// configured with an explicit one.
func DefaultFactory() Factory {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultFactory
}

// SetDefaultFactory replaces the process-wide factory. Intended for
// application start-up, before any pool resolves it.
func SetDefaultFactory(f Factory) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultFactory = f
}

// FileFactory produces handles backed by archive files on the local
// filesystem.
type FileFactory struct{}

func NewFileFactory() *FileFactory {
	return &FileFactory{}
}

func (f *FileFactory) Name() string { return "file" }

func (f *FileFactory) FileBacked() bool { return true }

func (f *FileFactory) Open(path string) (*Database, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrIOOpenFailed,
			fmt.Sprintf("Failed to open archive file %s", path),
		).WithPath(path).WithBackend(f.Name())
	}

	hdr, err := decodeHeader(file, path)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Database{path: path, backend: f.Name(), file: file, header: hdr}, nil
}

func (f *FileFactory) Create(def *Def) (*Database, error) {
	if def == nil {
		return nil, errors.NewRequiredFieldError("definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	if err := filesys.CreateDir(filepath.Dir(def.Path), 0755, true); err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrIOWriteFailed,
			fmt.Sprintf("Failed to create directory for archive file %s", def.Path),
		).WithPath(def.Path).WithBackend(f.Name())
	}

	hdr := newHeader(def)
	encoded, err := hdr.encode()
	if err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrHeaderWriteFailed, "Failed to encode archive header",
		).WithPath(def.Path).WithBackend(f.Name())
	}

	file, err := os.OpenFile(def.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.NewHandleError(
			err, errors.ErrIOOpenFailed,
			fmt.Sprintf("Failed to create archive file %s", def.Path),
		).WithPath(def.Path).WithBackend(f.Name())
	}

	if _, err := file.Write(encoded); err != nil {
		file.Close()
		return nil, errors.NewHandleError(
			err, errors.ErrHeaderWriteFailed,
			fmt.Sprintf("Failed to write archive header to %s", def.Path),
		).WithPath(def.Path).WithBackend(f.Name())
	}

	// Reserve the full data area so the file has its final size from the
	// start; every slot reads back as an unknown value until updated.
	if err := file.Truncate(int64(len(encoded)) + hdr.dataSize()); err != nil {
		file.Close()
		return nil, errors.NewHandleError(
			err, errors.ErrIOWriteFailed,
			fmt.Sprintf("Failed to size archive file %s", def.Path),
		).WithPath(def.Path).WithBackend(f.Name()).WithOffset(int64(len(encoded)))
	}

	return &Database{path: def.Path, backend: f.Name(), file: file, header: hdr}, nil
}

func (f *FileFactory) Import(path, xmlPath string) (*Database, error) {
	def, err := ParseDump(xmlPath)
	if err != nil {
		return nil, err
	}
	def.Path = path
	return f.Create(def)
}

// MemFactory produces handles without touching the filesystem. It exists
// for tests and tooling; the pool refuses to work with it.
type MemFactory struct {
	mu   sync.Mutex
	defs map[string]*header
}

func NewMemFactory() *MemFactory {
	return &MemFactory{defs: make(map[string]*header)}
}

func (m *MemFactory) Name() string { return "memory" }

func (m *MemFactory) FileBacked() bool { return false }

func (m *MemFactory) Open(path string) (*Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hdr, ok := m.defs[path]
	if !ok {
		return nil, errors.NewHandleError(
			nil, errors.ErrIOOpenFailed,
			fmt.Sprintf("No in-memory archive at %s", path),
		).WithPath(path).WithBackend(m.Name())
	}
	return &Database{path: path, backend: m.Name(), header: hdr}, nil
}

func (m *MemFactory) Create(def *Def) (*Database, error) {
	if def == nil {
		return nil, errors.NewRequiredFieldError("definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hdr := newHeader(def)
	m.defs[def.Path] = hdr
	return &Database{path: def.Path, backend: m.Name(), header: hdr}, nil
}

func (m *MemFactory) Import(path, xmlPath string) (*Database, error) {
	def, err := ParseDump(xmlPath)
	if err != nil {
		return nil, err
	}
	def.Path = path
	return m.Create(def)
}
