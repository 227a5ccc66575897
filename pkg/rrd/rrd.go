// Package rrd provides handles to round robin archive files: fixed-size
// binary files holding consolidated time series data. Opening a file parses
// and verifies its full header, which makes construction expensive; callers
// that open the same files repeatedly should go through the pool instead of
// using the factories directly.
package rrd

import (
	"fmt"
	"os"
	"sync"

	"github.com/iamNilotpal/rrdpool/pkg/errors"
)

// Database is one open archive file. It is safe for concurrent use; the
// file position is never shared (all I/O is offset based).
//
// A Database obtained from the pool is owned by the pool: never call Close
// on it, release it instead.
type Database struct {
	path    string
	backend string

	mu     sync.Mutex
	closed bool
	file   *os.File // nil for handles of non file-backed factories
	header *header
}

// Path returns the path the handle was opened with.
func (db *Database) Path() string {
	return db.path
}

// Backend returns the name of the factory that produced the handle.
func (db *Database) Backend() string {
	return db.backend
}

// IsClosed reports whether the handle has been closed.
func (db *Database) IsClosed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}

// Step returns the base update interval of the archive in seconds.
func (db *Database) Step() int64 {
	return db.header.step
}

// Sources returns the datasource layout of the archive.
func (db *Database) Sources() []Source {
	out := make([]Source, len(db.header.sources))
	copy(out, db.header.sources)
	return out
}

// Archives returns the archive layout of the file.
func (db *Database) Archives() []Archive {
	out := make([]Archive, len(db.header.archives))
	copy(out, db.header.archives)
	return out
}

// Close releases the underlying file. Closing an already closed handle is
// an error.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return errors.NewHandleError(
			nil, errors.ErrPoolHandleClosed,
			fmt.Sprintf("File %s already closed", db.path),
		).WithPath(db.path).WithBackend(db.backend)
	}

	db.closed = true
	if db.file == nil {
		return nil
	}

	if err := db.file.Close(); err != nil {
		return errors.NewHandleError(
			err, errors.ErrIOCloseFailed,
			fmt.Sprintf("Failed to close archive file %s", db.path),
		).WithPath(db.path).WithBackend(db.backend)
	}
	return nil
}
