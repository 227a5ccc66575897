package pool

import (
	"container/list"
	"sync"

	"go.uber.org/zap"

	"github.com/iamNilotpal/rrdpool/pkg/rrd"
)

// entry associates one open handle with its lease count.
type entry struct {
	db *rrd.Database

	// usage counts outstanding leases. The entry sits in the idle queue
	// exactly while usage == 0.
	usage int
}

// Pool caches open archive handles keyed by canonical path. One mutex
// guards every field below it; signal is the broadcast channel standing in
// for the monitor's condition variable (closed and replaced on every
// observable change, so waiters can also select on cancellation).
type Pool struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
	closed bool

	capacity int
	limited  bool
	factory  rrd.Factory

	table     map[string]*entry
	idle      *list.List // canonical paths, oldest release at the front
	idleIndex map[string]*list.Element

	hits     int
	requests int
	maxUsed  int
}
