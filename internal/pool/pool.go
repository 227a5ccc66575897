// Package pool implements a reference counted cache of open archive
// handles. Opening an archive parses and verifies its full header, so
// concurrent updaters and graphers share one handle per file; handles whose
// last lease was released stay open until a background reclaimer closes
// them, oldest release first, once the table outgrows its capacity.
package pool

import (
	"container/list"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/rrdpool/pkg/errors"
	"github.com/iamNilotpal/rrdpool/pkg/filesys"
	"github.com/iamNilotpal/rrdpool/pkg/rrd"
)

// New creates a pool and starts its reclaimer. A nil factory means the
// process-wide default is resolved lazily on first open.
func New(log *zap.SugaredLogger, capacity int, limited bool, factory rrd.Factory) *Pool {
	p := &Pool{
		log:       log,
		signal:    make(chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		capacity:  capacity,
		limited:   limited,
		factory:   factory,
		table:     make(map[string]*entry, capacity),
		idle:      list.New(),
		idleIndex: make(map[string]*list.Element),
	}

	log.Infow("Initializing handle pool", "capacity", capacity, "limitedCapacity", limited)
	go p.reclaim()
	return p
}

// RequestExisting returns a shared handle to an existing archive file,
// opening it on first use. Under limited capacity the call blocks while the
// table is full; cancelling ctx abandons the wait.
func (p *Pool) RequestExisting(ctx context.Context, path string) (*rrd.Database, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests++
	canonical, err := p.canonicalize(path)
	if err != nil {
		return nil, err
	}

	for {
		if p.closed {
			return nil, p.closedError(path)
		}

		if e, ok := p.table[canonical]; ok {
			e.usage++
			if e.usage == 1 {
				p.dequeueIdleLocked(canonical)
			}
			p.hits++
			p.broadcastLocked()
			return e.db, nil
		}

		if !p.limited || len(p.table) < p.capacity {
			factory, err := p.factoryLocked()
			if err != nil {
				return nil, err
			}
			db, err := factory.Open(path)
			if err != nil {
				return nil, err
			}
			p.insertLocked(canonical, db)
			return db, nil
		}

		if err := p.waitLocked(ctx, path); err != nil {
			return nil, err
		}
	}
}

// RequestCreate returns a handle to a freshly created archive described by
// def. An idle entry for the same canonical path is closed and replaced; a
// live one makes the call fail.
func (p *Pool) RequestCreate(ctx context.Context, def *rrd.Def) (*rrd.Database, error) {
	return p.requestNew(ctx, def.Path, func(f rrd.Factory) (*rrd.Database, error) {
		return f.Create(def)
	})
}

// RequestImport is RequestCreate with the definition taken from an XML
// dump file.
func (p *Pool) RequestImport(ctx context.Context, path, xmlPath string) (*rrd.Database, error) {
	return p.requestNew(ctx, path, func(f rrd.Factory) (*rrd.Database, error) {
		return f.Import(path, xmlPath)
	})
}

func (p *Pool) requestNew(ctx context.Context, path string, create func(rrd.Factory) (*rrd.Database, error)) (*rrd.Database, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests++
	canonical, err := p.canonicalize(path)
	if err != nil {
		return nil, err
	}

	for {
		if p.closed {
			return nil, p.closedError(path)
		}

		if e, ok := p.table[canonical]; ok {
			if e.usage > 0 {
				return nil, errors.NewPoolError(
					nil, errors.ErrPoolFileInUse,
					fmt.Sprintf("Cannot create new file: %s already in use", canonical),
				).WithPath(path).WithCanonicalPath(canonical)
			}
			// Idle entry for the same file: replacing it is safe.
			if err := p.removeLocked(canonical, e); err != nil {
				return nil, err
			}
			continue
		}

		if !p.limited || len(p.table) < p.capacity {
			factory, err := p.factoryLocked()
			if err != nil {
				return nil, err
			}
			db, err := create(factory)
			if err != nil {
				return nil, err
			}
			p.insertLocked(canonical, db)
			return db, nil
		}

		if err := p.waitLocked(ctx, path); err != nil {
			return nil, err
		}
	}
}

// Release hands a lease back. The entry becomes eligible for reclamation
// once its last lease is released. Releasing a nil handle is a no-op;
// releasing a closed or unknown handle is a misuse and fails.
func (p *Pool) Release(db *rrd.Database) error {
	if db == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if db.IsClosed() {
		return errors.NewPoolError(
			nil, errors.ErrPoolHandleClosed,
			fmt.Sprintf("File %s already closed", db.Path()),
		).WithPath(db.Path())
	}

	canonical, err := p.canonicalize(db.Path())
	if err != nil {
		return err
	}

	e, ok := p.table[canonical]
	if !ok {
		return errors.NewPoolError(
			nil, errors.ErrPoolNotInPool,
			fmt.Sprintf("File %s not in the pool", db.Path()),
		).WithPath(db.Path()).WithCanonicalPath(canonical)
	}
	if e.usage == 0 {
		return errors.NewPoolError(
			nil, errors.ErrPoolNotInPool,
			fmt.Sprintf("No outstanding lease on file %s", db.Path()),
		).WithPath(db.Path()).WithCanonicalPath(canonical)
	}

	e.usage--
	if e.usage == 0 {
		p.enqueueIdleLocked(canonical)
	}
	p.broadcastLocked()
	return nil
}

// Reset closes every handle held by the pool and empties both structures.
// Close failures do not stop the sweep; all of them are collected into the
// returned error. Counters keep their values.
func (p *Pool) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetLocked()
}

func (p *Pool) resetLocked() error {
	var errs error
	for canonical, e := range p.table {
		if err := e.db.Close(); err != nil {
			errs = multierr.Append(errs, err)
			p.log.Errorw("Failed to close pooled handle during reset", "path", canonical, "error", err)
		}
	}

	open := len(p.table)
	p.table = make(map[string]*entry)
	p.idle.Init()
	p.idleIndex = make(map[string]*list.Element)
	p.broadcastLocked()

	p.log.Infow("Pool reset", "closedHandles", open, "closeErrors", len(multierr.Errors(errs)))
	return errs
}

// Close stops the reclaimer and reclaims every entry. The pool must not be
// used afterwards; waiters blocked on capacity fail with a closed-pool
// error.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	err := p.resetLocked()
	p.mu.Unlock()

	<-p.done
	p.log.Infow("Handle pool closed")
	return err
}

// reclaim is the background worker parked on the broadcast channel. While
// the table is at capacity and idle entries exist it closes them, oldest
// release first. Close failures are reported and the sweep continues.
func (p *Pool) reclaim() {
	defer close(p.done)

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return
		}

		if front := p.idle.Front(); front != nil && len(p.table) >= p.capacity {
			canonical := front.Value.(string)
			if err := p.removeLocked(canonical, p.table[canonical]); err != nil {
				p.log.Errorw("Failed to close idle handle", "path", canonical, "error", err)
			} else {
				p.log.Debugw("Reclaimed idle handle", "path", canonical, "open", len(p.table))
			}
			continue
		}

		signal := p.signal
		p.mu.Unlock()
		select {
		case <-signal:
		case <-p.stop:
		}
		p.mu.Lock()
	}
}

// removeLocked closes an entry's handle and drops it from both structures.
// The entry is removed even when the close fails; a handle that cannot be
// closed must not stay in the table as if it were healthy.
func (p *Pool) removeLocked(canonical string, e *entry) error {
	err := e.db.Close()
	delete(p.table, canonical)
	p.dequeueIdleLocked(canonical)
	p.broadcastLocked()
	if err != nil {
		return errors.NewPoolError(
			err, errors.ErrIOCloseFailed,
			fmt.Sprintf("Failed to close pooled handle %s", canonical),
		).WithCanonicalPath(canonical)
	}
	return nil
}

func (p *Pool) insertLocked(canonical string, db *rrd.Database) {
	p.table[canonical] = &entry{db: db, usage: 1}
	if size := len(p.table); size > p.maxUsed {
		p.maxUsed = size
	}
	p.broadcastLocked()
	p.log.Debugw("Handle added to pool", "path", canonical, "open", len(p.table))
}

func (p *Pool) enqueueIdleLocked(canonical string) {
	p.idleIndex[canonical] = p.idle.PushBack(canonical)
}

func (p *Pool) dequeueIdleLocked(canonical string) {
	if elem, ok := p.idleIndex[canonical]; ok {
		p.idle.Remove(elem)
		delete(p.idleIndex, canonical)
	}
}

// broadcastLocked wakes every waiter: admission and reclamation wait on
// different predicates, so targeted wake-ups are unsafe.
func (p *Pool) broadcastLocked() {
	close(p.signal)
	p.signal = make(chan struct{})
}

// waitLocked parks the caller until the next broadcast. The mutex is
// dropped for the duration of the wait and reacquired before returning.
func (p *Pool) waitLocked(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	signal := p.signal
	p.mu.Unlock()
	select {
	case <-signal:
		p.mu.Lock()
		return nil
	case <-p.stop:
		p.mu.Lock()
		return p.closedError(path)
	case <-ctx.Done():
		p.mu.Lock()
		return errors.NewPoolError(
			ctx.Err(), errors.ErrPoolInterrupted,
			fmt.Sprintf("Request for file %s was interrupted", path),
		).WithPath(path).WithCapacity(p.capacity)
	}
}

func (p *Pool) canonicalize(path string) (string, error) {
	canonical, err := filesys.Canonicalize(path)
	if err != nil {
		return "", errors.NewPoolError(
			err, errors.ErrIOCanonicalizeFailed,
			fmt.Sprintf("Failed to resolve path %s", path),
		).WithPath(path)
	}
	return canonical, nil
}

// factoryLocked resolves the backend factory on first use. A default that
// is not file-backed is rejected and left unset, so a corrected default is
// picked up by a later request.
func (p *Pool) factoryLocked() (rrd.Factory, error) {
	if p.factory != nil {
		return p.factory, nil
	}

	factory := rrd.DefaultFactory()
	if !factory.FileBacked() {
		return nil, errors.NewPoolError(
			nil, errors.ErrPoolBackendUnsupported,
			fmt.Sprintf("Pool cannot work with factory %q: not file backed", factory.Name()),
		)
	}

	p.factory = factory
	return factory, nil
}

func (p *Pool) closedError(path string) *errors.PoolError {
	return errors.NewPoolError(
		nil, errors.ErrPoolClosed, "Pool is closed",
	).WithPath(path)
}

// Capacity returns the table size at which the reclaimer starts closing
// idle handles.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// SetCapacity changes the reclamation threshold. Lowering it arms the
// reclaimer immediately.
func (p *Pool) SetCapacity(capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capacity = capacity
	p.broadcastLocked()
}

// LimitedCapacity reports whether the capacity is a hard ceiling.
func (p *Pool) LimitedCapacity() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limited
}

// SetLimitedCapacity toggles between the soft threshold (the table may grow
// past capacity; the reclaimer closes idle entries only, so it stays over
// capacity while enough entries are live) and the hard ceiling (requests
// for unseen paths block while the table is full).
func (p *Pool) SetLimitedCapacity(limited bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limited = limited
	p.broadcastLocked()
}

// Hits returns the number of requests served from the table.
func (p *Pool) Hits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits
}

// Requests returns the total number of requests observed.
func (p *Pool) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// MaxUsedCapacity returns the largest table size observed so far.
func (p *Pool) MaxUsedCapacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxUsed
}

// Efficiency returns hits/requests rounded to three decimals, or 1 when
// nothing was requested yet.
func (p *Pool) Efficiency() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.requests == 0 {
		return 1.0
	}
	ratio := float64(p.hits) / float64(p.requests)
	return math.Round(ratio*1000.0) / 1000.0
}

// OpenCount returns the current table size.
func (p *Pool) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.table)
}

// IdleCount returns the number of entries eligible for reclamation.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle.Len()
}

// CachedPaths returns a sorted snapshot of the canonical paths currently
// held open.
func (p *Pool) CachedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	paths := make([]string, 0, len(p.table))
	for canonical := range p.table {
		paths = append(paths, canonical)
	}
	sort.Strings(paths)
	return paths
}

// Dump renders the pool state for debugging. With includeFiles each open
// entry is listed as "canonical_path [usage_count]".
func (p *Pool) Dump(includeFiles bool) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	b.WriteString("==== POOL DUMP ===========================\n")
	fmt.Fprintf(&b, "open=%d, idle=%d\n", len(p.table), p.idle.Len())
	fmt.Fprintf(&b, "capacity=%d, maxUsedCapacity=%d\n", p.capacity, p.maxUsed)
	fmt.Fprintf(&b, "hits=%d, requests=%d\n", p.hits, p.requests)

	efficiency := 1.0
	if p.requests != 0 {
		efficiency = math.Round(float64(p.hits)/float64(p.requests)*1000.0) / 1000.0
	}
	fmt.Fprintf(&b, "efficiency=%g\n", efficiency)

	if includeFiles {
		b.WriteString("---- CACHED FILES ------------------------\n")
		paths := make([]string, 0, len(p.table))
		for canonical := range p.table {
			paths = append(paths, canonical)
		}
		sort.Strings(paths)
		for _, canonical := range paths {
			fmt.Fprintf(&b, "%s [%d]\n", canonical, p.table[canonical].usage)
		}
	}
	return b.String()
}
