package arena

import (
	"sync"
	"sync/atomic"
)

const (
	// DefaultChunkSize is the size of a heap chunk (256 KiB).
	DefaultChunkSize = 256 * 1024

	// minChunkSize keeps tiny configurations from thrashing the chunk list.
	minChunkSize = 4 * 1024
)

// Stats tracks heap memory usage.
//
//   - ChunksAllocated: chunks ever created
//   - BytesReserved: bytes currently held in chunks and large blocks
//   - BytesUsed: bytes handed out and not yet freed
//   - LiveAllocs: allocations not yet freed
//   - TotalAllocs, TotalFrees: cumulative counters
type Stats struct {
	ChunksAllocated uint64 `json:"chunks_allocated"`
	BytesReserved   uint64 `json:"bytes_reserved"`
	BytesUsed       uint64 `json:"bytes_used"`
	LiveAllocs      uint64 `json:"live_allocs"`
	TotalAllocs     uint64 `json:"total_allocs"`
	TotalFrees      uint64 `json:"total_frees"`
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		ChunksAllocated: s.ChunksAllocated + o.ChunksAllocated,
		BytesReserved:   s.BytesReserved + o.BytesReserved,
		BytesUsed:       s.BytesUsed + o.BytesUsed,
		LiveAllocs:      s.LiveAllocs + o.LiveAllocs,
		TotalAllocs:     s.TotalAllocs + o.TotalAllocs,
		TotalFrees:      s.TotalFrees + o.TotalFrees,
	}
}

type atomicStats struct {
	chunksAllocated atomic.Uint64
	bytesReserved   atomic.Uint64
	bytesUsed       atomic.Uint64
	liveAllocs      atomic.Int64
	totalAllocs     atomic.Uint64
	totalFrees      atomic.Uint64
}

type chunk struct {
	data   []byte
	offset atomic.Int64 // accessed concurrently without locks
}

// Heap is a chunked bump allocator.
//
// Allocations are carved from the current chunk with a CAS on its offset.
// Only chunk creation takes the mutex. Freed bytes are not reused
// individually; once every allocation has been freed the heap drops its
// chunks so the garbage collector can reclaim them.
type Heap struct {
	id        int
	chunkSize int

	current atomic.Pointer[chunk]

	mu     sync.Mutex
	chunks []*chunk

	stats atomicStats
}

// NewHeap creates a heap. chunkSize <= 0 selects DefaultChunkSize.
func NewHeap(id, chunkSize int) *Heap {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}
	return &Heap{id: id, chunkSize: chunkSize}
}

// ID returns the heap identifier.
func (h *Heap) ID() int {
	return h.id
}

// Alloc returns n zeroed bytes. The slice has capacity n so appends never
// spill into a neighbouring allocation.
func (h *Heap) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}

	h.stats.totalAllocs.Add(1)
	h.stats.liveAllocs.Add(1)
	h.stats.bytesUsed.Add(uint64(n))

	// Large blocks bypass the chunks.
	if n > h.chunkSize/4 {
		h.stats.bytesReserved.Add(uint64(n))
		return make([]byte, n)
	}

	for {
		c := h.current.Load()
		if c != nil {
			off := c.offset.Load()
			end := off + int64(n)
			if end <= int64(len(c.data)) {
				if c.offset.CompareAndSwap(off, end) {
					return c.data[off:end:end]
				}
				continue
			}
		}
		h.grow(c)
	}
}

// grow installs a new chunk unless another goroutine already replaced seen.
func (h *Heap) grow(seen *chunk) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current.Load() != seen {
		return
	}

	c := &chunk{data: make([]byte, h.chunkSize)}
	h.chunks = append(h.chunks, c)
	h.current.Store(c)

	h.stats.chunksAllocated.Add(1)
	h.stats.bytesReserved.Add(uint64(h.chunkSize))
}

// Free returns b to the heap. b must come from Alloc on this heap.
func (h *Heap) Free(b []byte) {
	n := len(b)
	if n == 0 {
		return
	}

	h.stats.totalFrees.Add(1)
	h.stats.bytesUsed.Add(^uint64(n - 1))
	if n > h.chunkSize/4 {
		h.stats.bytesReserved.Add(^uint64(n - 1))
	}

	if h.stats.liveAllocs.Add(-1) == 0 {
		h.release()
	}
}

// release drops every chunk once the heap holds no live allocation.
func (h *Heap) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stats.liveAllocs.Load() != 0 {
		return
	}

	var held uint64
	for _, c := range h.chunks {
		held += uint64(len(c.data))
	}
	h.chunks = nil
	h.current.Store(nil)
	h.stats.bytesReserved.Add(^uint64(held - 1))
}

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() Stats {
	live := h.stats.liveAllocs.Load()
	if live < 0 {
		live = 0
	}
	return Stats{
		ChunksAllocated: h.stats.chunksAllocated.Load(),
		BytesReserved:   h.stats.bytesReserved.Load(),
		BytesUsed:       h.stats.bytesUsed.Load(),
		LiveAllocs:      uint64(live),
		TotalAllocs:     h.stats.totalAllocs.Load(),
		TotalFrees:      h.stats.totalFrees.Load(),
	}
}
