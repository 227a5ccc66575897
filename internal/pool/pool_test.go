package pool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/rrdpool/pkg/errors"
	"github.com/iamNilotpal/rrdpool/pkg/filesys"
	"github.com/iamNilotpal/rrdpool/pkg/logger"
	"github.com/iamNilotpal/rrdpool/pkg/rrd"
)

func testDef(path string) *rrd.Def {
	return &rrd.Def{
		Path:     path,
		Step:     300,
		Sources:  []rrd.Source{{Name: "speed", Heartbeat: 600}},
		Archives: []rrd.Archive{{Steps: 1, Rows: 24}},
	}
}

func createArchive(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	db, err := rrd.NewFileFactory().Create(testDef(path))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func newTestPool(t *testing.T, capacity int, limited bool) *Pool {
	t.Helper()

	p := New(logger.Nop(), capacity, limited, rrd.NewFileFactory())
	t.Cleanup(func() { p.Close() })
	return p
}

func canon(t *testing.T, path string) string {
	t.Helper()

	canonical, err := filesys.Canonicalize(path)
	require.NoError(t, err)
	return canonical
}

func TestRequestExisting_CacheHit(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")
	p := newTestPool(t, 10, false)

	h1, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)

	h2, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)

	require.Same(t, h1, h2)
	require.Equal(t, 2, p.Requests())
	require.Equal(t, 1, p.Hits())
	require.Equal(t, 1, p.MaxUsedCapacity())
	require.Equal(t, []string{canon(t, path)}, p.CachedPaths())
}

func TestRequestExisting_CanonicalAliasing(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")

	link := filepath.Join(t.TempDir(), "alias")
	require.NoError(t, os.Symlink(dir, link))

	p := newTestPool(t, 10, false)

	h1, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)

	h2, err := p.RequestExisting(context.Background(), filepath.Join(link, "a.rrd"))
	require.NoError(t, err)

	require.Same(t, h1, h2)
	require.Equal(t, 1, p.Hits())
	require.Len(t, p.CachedPaths(), 1)
}

func TestReleaseAndReclaim(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")
	p := newTestPool(t, 10, false)

	h1, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)
	h2, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, p.Release(h1))
	require.NoError(t, p.Release(h2))

	require.Equal(t, 1, p.IdleCount())

	p.SetCapacity(0)
	require.Eventually(t, func() bool { return p.OpenCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.True(t, h1.IsClosed())
	require.Equal(t, 0, p.IdleCount())
}

func TestRecreateOverIdle(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "b.rrd")
	p := newTestPool(t, 10, false)

	h, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, p.Release(h))

	fresh, err := p.RequestCreate(context.Background(), testDef(path))
	require.NoError(t, err)

	require.NotSame(t, h, fresh)
	require.True(t, h.IsClosed())
	require.False(t, fresh.IsClosed())
	require.Equal(t, []string{canon(t, path)}, p.CachedPaths())
	require.NoError(t, p.Release(fresh))
}

func TestRecreateOverLiveRejected(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "c.rrd")
	p := newTestPool(t, 10, false)

	h, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)

	_, err = p.RequestCreate(context.Background(), testDef(path))
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrPoolFileInUse))

	// The live entry is untouched.
	require.False(t, h.IsClosed())
	require.Equal(t, []string{canon(t, path)}, p.CachedPaths())
	require.NoError(t, p.Release(h))
}

func TestLimitedCapacityBlocks(t *testing.T) {
	dir := t.TempDir()
	pathX := createArchive(t, dir, "x.rrd")
	pathY := createArchive(t, dir, "y.rrd")
	p := newTestPool(t, 1, true)

	hx, err := p.RequestExisting(context.Background(), pathX)
	require.NoError(t, err)

	type result struct {
		db  *rrd.Database
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := p.RequestExisting(context.Background(), pathY)
		resultCh <- result{db, err}
	}()

	select {
	case res := <-resultCh:
		t.Fatalf("request for %s returned %v before capacity was freed", pathY, res.err)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, p.Release(hx))

	select {
	case res := <-resultCh:
		require.NoError(t, res.err)
		require.NoError(t, p.Release(res.db))
	case <-time.After(2 * time.Second):
		t.Fatalf("request for %s still blocked after release", pathY)
	}
}

func TestLimitedCapacityInterrupted(t *testing.T) {
	dir := t.TempDir()
	pathX := createArchive(t, dir, "x.rrd")
	pathY := createArchive(t, dir, "y.rrd")
	p := newTestPool(t, 1, true)

	hx, err := p.RequestExisting(context.Background(), pathX)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.RequestExisting(ctx, pathY)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		require.True(t, errors.HasCode(err, errors.ErrPoolInterrupted))
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request never returned")
	}

	// The interrupted request left no entry behind.
	require.Equal(t, []string{canon(t, pathX)}, p.CachedPaths())
	require.NoError(t, p.Release(hx))
}

func TestEvictionOrderFIFO(t *testing.T) {
	dir := t.TempDir()
	pathA := createArchive(t, dir, "a.rrd")
	pathB := createArchive(t, dir, "b.rrd")
	pathC := createArchive(t, dir, "c.rrd")
	p := newTestPool(t, 10, false)

	ha, err := p.RequestExisting(context.Background(), pathA)
	require.NoError(t, err)
	hb, err := p.RequestExisting(context.Background(), pathB)
	require.NoError(t, err)
	hc, err := p.RequestExisting(context.Background(), pathC)
	require.NoError(t, err)

	require.NoError(t, p.Release(ha))
	require.NoError(t, p.Release(hb))

	// Three open entries, two idle. Capacity 3 lets the reclaimer close
	// exactly one, and it must be the oldest release.
	p.SetCapacity(3)
	require.Eventually(t, func() bool { return p.OpenCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.True(t, ha.IsClosed())
	require.False(t, hb.IsClosed())
	require.False(t, hc.IsClosed())
	require.NoError(t, p.Release(hc))
}

func TestReleaseReuseMovesToTail(t *testing.T) {
	dir := t.TempDir()
	pathA := createArchive(t, dir, "a.rrd")
	pathB := createArchive(t, dir, "b.rrd")
	pathC := createArchive(t, dir, "c.rrd")
	p := newTestPool(t, 10, false)

	ha, err := p.RequestExisting(context.Background(), pathA)
	require.NoError(t, err)
	hb, err := p.RequestExisting(context.Background(), pathB)
	require.NoError(t, err)
	hc, err := p.RequestExisting(context.Background(), pathC)
	require.NoError(t, err)

	require.NoError(t, p.Release(ha))
	require.NoError(t, p.Release(hb))

	// Re-using and re-releasing a moves it behind b in the queue.
	ha2, err := p.RequestExisting(context.Background(), pathA)
	require.NoError(t, err)
	require.Same(t, ha, ha2)
	require.NoError(t, p.Release(ha2))

	p.SetCapacity(3)
	require.Eventually(t, func() bool { return p.OpenCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.True(t, hb.IsClosed())
	require.False(t, ha.IsClosed())
	require.NoError(t, p.Release(hc))
}

func TestResetClosesAll(t *testing.T) {
	dir := t.TempDir()
	p := newTestPool(t, 10, false)

	handles := make([]*rrd.Database, 0, 5)
	for _, name := range []string{"a.rrd", "b.rrd", "c.rrd", "d.rrd", "e.rrd"} {
		path := createArchive(t, dir, name)
		db, err := p.RequestExisting(context.Background(), path)
		require.NoError(t, err)
		handles = append(handles, db)
	}

	// Mixed usage counts: one extra lease on the first, one idle entry.
	_, err := p.RequestExisting(context.Background(), handles[0].Path())
	require.NoError(t, err)
	require.NoError(t, p.Release(handles[4]))

	requests, hits := p.Requests(), p.Hits()
	require.NoError(t, p.Reset())

	require.Equal(t, 0, p.OpenCount())
	require.Equal(t, 0, p.IdleCount())
	for _, db := range handles {
		require.True(t, db.IsClosed())
	}

	// Counters survive a reset.
	require.Equal(t, requests, p.Requests())
	require.Equal(t, hits, p.Hits())
}

func TestUnsupportedBackend(t *testing.T) {
	defer rrd.SetDefaultFactory(rrd.NewFileFactory())
	rrd.SetDefaultFactory(rrd.NewMemFactory())

	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")

	p := New(logger.Nop(), 10, false, nil)
	t.Cleanup(func() { p.Close() })

	_, err := p.RequestExisting(context.Background(), path)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrPoolBackendUnsupported))
	require.Equal(t, 0, p.OpenCount())

	// A corrected default factory is picked up afterwards.
	rrd.SetDefaultFactory(rrd.NewFileFactory())
	db, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, p.Release(db))
}

func TestDoubleReleaseFails(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")
	p := newTestPool(t, 10, false)

	h, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, p.Release(h))

	err = p.Release(h)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrPoolNotInPool))
}

func TestReleaseClosedHandleFails(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")
	p := newTestPool(t, 10, false)

	h, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)

	// Closing a pool-issued handle is a contract violation; release must
	// detect it instead of corrupting the count.
	require.NoError(t, h.Close())
	err = p.Release(h)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrPoolHandleClosed))
}

func TestReleaseNilIsNoop(t *testing.T) {
	p := newTestPool(t, 10, false)
	require.NoError(t, p.Release(nil))
	require.Equal(t, 0, p.Requests())
}

func TestReleaseUnknownHandleFails(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")
	p := newTestPool(t, 10, false)

	// A handle opened behind the pool's back was never issued by it.
	db, err := rrd.NewFileFactory().Open(path)
	require.NoError(t, err)
	defer db.Close()

	err = p.Release(db)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrPoolNotInPool))
}

func TestEfficiency(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")
	p := newTestPool(t, 10, false)

	require.Equal(t, 1.0, p.Efficiency())

	h, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		dup, err := p.RequestExisting(context.Background(), path)
		require.NoError(t, err)
		require.NoError(t, p.Release(dup))
	}
	require.NoError(t, p.Release(h))

	// 2 hits out of 3 requests, rounded to three decimals.
	require.Equal(t, 0.667, p.Efficiency())
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")
	p := newTestPool(t, 10, false)

	h, err := p.RequestExisting(context.Background(), path)
	require.NoError(t, err)

	dump := p.Dump(true)
	require.True(t, strings.HasPrefix(dump, "==== POOL DUMP ===="))
	require.Contains(t, dump, "open=1, idle=0")
	require.Contains(t, dump, "capacity=10, maxUsedCapacity=1")
	require.Contains(t, dump, "hits=0, requests=1")
	require.Contains(t, dump, canon(t, path)+" [1]")

	withoutFiles := p.Dump(false)
	require.NotContains(t, withoutFiles, "CACHED FILES")
	require.NoError(t, p.Release(h))
}

func TestRequestAfterClose(t *testing.T) {
	dir := t.TempDir()
	path := createArchive(t, dir, "a.rrd")

	p := New(logger.Nop(), 10, false, rrd.NewFileFactory())
	require.NoError(t, p.Close())

	_, err := p.RequestExisting(context.Background(), path)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrPoolClosed))
}

func TestConcurrentRequests(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 8)
	for i := range paths {
		paths[i] = createArchive(t, dir, string(rune('a'+i))+".rrd")
	}
	p := newTestPool(t, 4, false)

	done := make(chan error, 32)
	for i := 0; i < 4; i++ {
		go func() {
			for _, path := range paths {
				db, err := p.RequestExisting(context.Background(), path)
				if err != nil {
					done <- err
					return
				}
				time.Sleep(time.Millisecond)
				if err := p.Release(db); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}

	require.Equal(t, 32, p.Requests())
	require.LessOrEqual(t, p.MaxUsedCapacity(), 8)
}
