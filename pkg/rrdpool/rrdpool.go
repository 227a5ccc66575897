// Package rrdpool exposes the shared pool of open archive handles.
//
// Opening an archive file is expensive; in a typical deployment one updater
// and several graphers touch the same files concurrently. The pool opens
// each file once, hands out shared handles and closes files lazily in the
// background. Callers must release every handle they request and must never
// close one themselves.
package rrdpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iamNilotpal/rrdpool/internal/pool"
	"github.com/iamNilotpal/rrdpool/pkg/errors"
	"github.com/iamNilotpal/rrdpool/pkg/logger"
	"github.com/iamNilotpal/rrdpool/pkg/options"
	"github.com/iamNilotpal/rrdpool/pkg/rrd"
)

// preloadConcurrency bounds the fan-out of Preload.
const preloadConcurrency = 8

// Pool is a reference counted cache of open archive handles.
type Pool struct {
	pool    *pool.Pool
	options *options.Options
	log     *zap.SugaredLogger
}

// New creates a pool instance and starts its background reclaimer.
func New(service string, opts ...options.OptionFunc) (*Pool, error) {
	log := logger.New(service)

	defaultOpts := options.DefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	if defaultOpts.Factory != nil && !defaultOpts.Factory.FileBacked() {
		return nil, errors.NewPoolError(
			nil, errors.ErrPoolBackendUnsupported,
			"Pool cannot work with factories that are not file backed",
		)
	}

	core := pool.New(log, defaultOpts.Capacity, defaultOpts.LimitedCapacity, defaultOpts.Factory)

	log.Infow(
		"Handle pool initialized",
		"service", service,
		"capacity", defaultOpts.Capacity,
		"limitedCapacity", defaultOpts.LimitedCapacity,
	)

	return &Pool{pool: core, options: &defaultOpts, log: log}, nil
}

// Request returns a shared handle to the existing archive file at path.
// Every successful Request must be paired with a Release.
func (p *Pool) Request(ctx context.Context, path string) (*rrd.Database, error) {
	if path == "" {
		return nil, errors.NewRequiredFieldError("path")
	}
	return p.pool.RequestExisting(ctx, path)
}

// RequestImport returns a handle to a fresh archive created at path from an
// rrdtool style XML dump. An idle pooled handle for the same file is
// replaced; a live one makes the call fail.
func (p *Pool) RequestImport(ctx context.Context, path, xmlPath string) (*rrd.Database, error) {
	if path == "" {
		return nil, errors.NewRequiredFieldError("path")
	}
	if xmlPath == "" {
		return nil, errors.NewRequiredFieldError("xml dump path")
	}
	return p.pool.RequestImport(ctx, path, xmlPath)
}

// RequestCreate returns a handle to a fresh archive created from def,
// replacing an idle pooled handle for the same file if there is one.
func (p *Pool) RequestCreate(ctx context.Context, def *rrd.Def) (*rrd.Database, error) {
	if def == nil {
		return nil, errors.NewRequiredFieldError("definition")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return p.pool.RequestCreate(ctx, def)
}

// Release hands a handle back to the pool. Mandatory for every handle
// obtained from a Request call.
func (p *Pool) Release(db *rrd.Database) error {
	return p.pool.Release(db)
}

// Preload warms the pool by requesting and releasing every given path
// concurrently. Entries stay open (idle) until capacity pressure reclaims
// them. The first failure cancels the remaining work.
func (p *Pool) Preload(ctx context.Context, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			db, err := p.pool.RequestExisting(ctx, path)
			if err != nil {
				return err
			}
			return p.pool.Release(db)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	p.log.Infow("Preload completed", "paths", len(paths), "open", p.pool.OpenCount())
	return nil
}

// Reset closes every pooled handle and empties the pool. Counters are
// preserved.
func (p *Pool) Reset() error {
	return p.pool.Reset()
}

// Close stops the reclaimer and closes every pooled handle. The pool must
// not be used afterwards.
func (p *Pool) Close() error {
	return p.pool.Close()
}

// Capacity returns the reclamation threshold.
func (p *Pool) Capacity() int { return p.pool.Capacity() }

// SetCapacity changes the reclamation threshold at runtime.
func (p *Pool) SetCapacity(capacity int) { p.pool.SetCapacity(capacity) }

// LimitedCapacity reports whether the capacity is a hard ceiling.
func (p *Pool) LimitedCapacity() bool { return p.pool.LimitedCapacity() }

// SetLimitedCapacity toggles the hard ceiling behaviour at runtime.
func (p *Pool) SetLimitedCapacity(limited bool) { p.pool.SetLimitedCapacity(limited) }

// Hits returns the number of requests served from the pool.
func (p *Pool) Hits() int { return p.pool.Hits() }

// Requests returns the total number of requests.
func (p *Pool) Requests() int { return p.pool.Requests() }

// MaxUsedCapacity returns the largest number of simultaneously open
// handles observed.
func (p *Pool) MaxUsedCapacity() int { return p.pool.MaxUsedCapacity() }

// Efficiency returns hits/requests rounded to three decimals; 1 when no
// request was made yet.
func (p *Pool) Efficiency() float64 { return p.pool.Efficiency() }

// CachedPaths returns a snapshot of the canonical paths currently open.
func (p *Pool) CachedPaths() []string { return p.pool.CachedPaths() }

// Dump renders the pool state, optionally listing every open file with its
// lease count.
func (p *Pool) Dump(includeFiles bool) string { return p.pool.Dump(includeFiles) }

var (
	defaultMu   sync.Mutex
	defaultPool *Pool
)

// Default returns the process-wide pool, constructing it on first use.
// Applications embedding several pools should create their own with New;
// Default exists for callers that want the classic shared instance.
func Default() (*Pool, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultPool == nil {
		p, err := New("rrdpool")
		if err != nil {
			return nil, err
		}
		defaultPool = p
	}
	return defaultPool, nil
}

// ClosePool tears down the process-wide pool. A later Default call builds
// a fresh one.
func ClosePool() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultPool == nil {
		return nil
	}
	err := defaultPool.Close()
	defaultPool = nil
	return err
}
