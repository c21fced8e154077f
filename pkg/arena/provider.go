package arena

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Provider hands out allocation contexts.
type Provider interface {
	// Current returns the context of the calling goroutine. Repeated calls
	// from one goroutine return equal contexts.
	Current() Context

	// Stats aggregates the counters of every heap in use.
	Stats() Stats
}

// Context pairs an allocation tag with the heap that serves it.
// The zero Context is invalid; Alloc on it falls back to the Go heap.
type Context struct {
	tag  uint64
	heap *Heap
}

// Tag returns the allocation tag.
func (c Context) Tag() uint64 { return c.tag }

// Valid reports whether the context is backed by a heap.
func (c Context) Valid() bool { return c.heap != nil }

// HeapID returns the identifier of the backing heap, or -1.
func (c Context) HeapID() int {
	if c.heap == nil {
		return -1
	}
	return c.heap.ID()
}

// Alloc allocates n bytes from the context's heap.
func (c Context) Alloc(n int) []byte {
	if c.heap == nil {
		if n <= 0 {
			return nil
		}
		return make([]byte, n)
	}
	return c.heap.Alloc(n)
}

// Free returns b to the context's heap.
func (c Context) Free(b []byte) {
	if c.heap != nil {
		c.heap.Free(b)
	}
}

// Equal reports whether two contexts share tag and heap.
func (c Context) Equal(o Context) bool {
	return c.tag == o.tag && c.heap == o.heap
}

// Registry is the default Provider. It maps a tag to one of a bounded
// number of slots and lazily registers a heap per slot through its
// Strategy.
type Registry struct {
	strategy Strategy
	slots    uint64

	mu    sync.RWMutex
	heaps map[uint64]*Heap

	registrations atomic.Uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrategy sets the heap strategy.
func WithStrategy(s Strategy) Option {
	return func(r *Registry) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithSlots sets the number of registry slots. n <= 0 selects
// 4 * GOMAXPROCS.
func WithSlots(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.slots = uint64(n)
		}
	}
}

// New creates a Registry. Without options it uses the shared strategy.
func New(opts ...Option) *Registry {
	r := &Registry{
		slots: uint64(4 * runtime.GOMAXPROCS(0)),
		heaps: make(map[uint64]*Heap),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.strategy == nil {
		r.strategy = NewSharedStrategy(0)
	}
	return r
}

// Current implements Provider.
func (r *Registry) Current() Context {
	return r.contextFor(CurrentTag())
}

func (r *Registry) contextFor(tag uint64) Context {
	slot := tag % r.slots

	r.mu.RLock()
	h, ok := r.heaps[slot]
	r.mu.RUnlock()
	if ok {
		return Context{tag: tag, heap: h}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if h, ok = r.heaps[slot]; !ok {
		h = r.strategy.HeapFor(int(slot))
		r.heaps[slot] = h
		r.registrations.Add(1)
	}
	return Context{tag: tag, heap: h}
}

// Stats implements Provider. Heaps shared by several slots are counted once.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Heap]struct{}, len(r.heaps))
	var total Stats
	for _, h := range r.heaps {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		total = total.Add(h.Stats())
	}
	return total
}

// StrategyName returns the name of the configured strategy.
func (r *Registry) StrategyName() string {
	return r.strategy.Name()
}

// Slots returns the number of registry slots.
func (r *Registry) Slots() int {
	return int(r.slots)
}

// Registrations returns how many slots have been registered.
func (r *Registry) Registrations() uint64 {
	return r.registrations.Load()
}

// Heaps returns the number of distinct heaps in use.
func (r *Registry) Heaps() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Heap]struct{}, len(r.heaps))
	for _, h := range r.heaps {
		seen[h] = struct{}{}
	}
	return len(seen)
}
