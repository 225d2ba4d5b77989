package ws

import (
	"net"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"
)

type clientState int

const (
	stateInactive clientState = iota
	stateConnecting
	stateActive
	stateClosing
)

// clientSlot is one entry in the client table. Every field here is only
// ever touched while holding that slot's segment mutex.
type clientSlot struct {
	conn             net.Conn
	state            clientState
	lastActivity     time.Time
	outstandingPings int
	asm              *recvAssembler
}

// table is the bitmap-indexed, segment-locked client registry. Slot i's
// mutations are serialized by segments[i%numSegments]; the global mutex
// guards the occupancy bitmap and any operation that spans slots. Never
// hold two segment mutexes at once; when both are needed, take global
// first.
type table struct {
	globalMu sync.Mutex
	bitmap   *occupancyBitmap

	segments []sync.Mutex
	slots    []*clientSlot

	numSegments int
}

func newTable(maxClients, numSegments int) *table {
	if numSegments <= 0 {
		numSegments = 1
	}
	return &table{
		bitmap:      newOccupancyBitmap(maxClients),
		segments:    make([]sync.Mutex, numSegments),
		slots:       make([]*clientSlot, maxClients),
		numSegments: numSegments,
	}
}

func (t *table) segmentFor(idx int) *sync.Mutex {
	return &t.segments[idx%t.numSegments]
}

// acquire reserves a free slot for conn, marking it Connecting. It
// reports false if the table is at max_clients capacity.
func (t *table) acquire(conn net.Conn, pool *recvAssemblerFactory) (int, bool) {
	t.globalMu.Lock()
	idx, ok := t.bitmap.acquire()
	if !ok {
		t.globalMu.Unlock()
		return 0, false
	}
	mu := t.segmentFor(idx)
	mu.Lock()
	t.slots[idx] = &clientSlot{
		conn:         conn,
		state:        stateConnecting,
		lastActivity: time.Now(),
		asm:          pool.new(),
	}
	mu.Unlock()
	t.globalMu.Unlock()
	return idx, true
}

// release frees idx, unconditionally. Callers close the connection
// separately.
func (t *table) release(idx int) {
	t.globalMu.Lock()
	mu := t.segmentFor(idx)
	mu.Lock()
	t.bitmap.release(idx)
	t.slots[idx] = nil
	mu.Unlock()
	t.globalMu.Unlock()
}

// withSlot runs fn against slot idx under its segment mutex. It is a
// no-op if the slot has already been released.
func (t *table) withSlot(idx int, fn func(*clientSlot)) {
	mu := t.segmentFor(idx)
	mu.Lock()
	defer mu.Unlock()
	slot := t.slots[idx]
	if slot == nil {
		return
	}
	fn(slot)
}

// activeCount reports the number of occupied slots, for metrics.
func (t *table) activeCount() int {
	t.globalMu.Lock()
	defer t.globalMu.Unlock()
	return t.bitmap.count()
}

// forEach enumerates every occupied slot, acquiring global first and
// then each slot's segment mutex in turn, per the table's lock
// ordering rule.
func (t *table) forEach(fn func(idx int, slot *clientSlot)) {
	t.globalMu.Lock()
	defer t.globalMu.Unlock()

	for idx, slot := range t.slots {
		if slot == nil {
			continue
		}
		mu := t.segmentFor(idx)
		mu.Lock()
		fn(idx, slot)
		mu.Unlock()
	}
}

// recvAssemblerFactory builds recvAssemblers sharing one buffer pool,
// so every connection's receive buffer draws from the same pool rather
// than allocating its own.
type recvAssemblerFactory struct {
	pool         *bytebufferpool.Pool
	poolBufBytes int
}

func newRecvAssemblerFactory(poolBufBytes int) *recvAssemblerFactory {
	return &recvAssemblerFactory{pool: &bytebufferpool.Pool{}, poolBufBytes: poolBufBytes}
}

func (f *recvAssemblerFactory) new() *recvAssembler {
	return newRecvAssembler(f.pool, f.poolBufBytes)
}
