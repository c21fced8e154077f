package lfmap

import (
	"sync/atomic"

	"github.com/yndnr/kvmesh-go/pkg/arena"
)

const (
	// DefaultExpectedKeys is the key count the default sizing assumes.
	DefaultExpectedKeys = 1_000_000

	// DefaultBucketCount is twice DefaultExpectedKeys.
	DefaultBucketCount = 2 * DefaultExpectedKeys

	// MaxBucketCount bounds the bucket array and fits a 32-bit int.
	MaxBucketCount = 1 << 30
)

// Statistics holds the read counters. The two fields are read
// independently and may be mutually inconsistent under concurrent reads.
type Statistics struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
}

// Total returns the number of reads counted.
func (s Statistics) Total() uint64 {
	return s.Success + s.Failure
}

// Store is a fixed-size, lock-free hash table of string keys to byte values.
type Store struct {
	buckets  []atomic.Pointer[node]
	hash     HashFunc
	provider arena.Provider

	hits   atomic.Uint64
	misses atomic.Uint64
	keys   atomic.Int64
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithProvider sets the allocation context provider for node keys.
func WithProvider(p arena.Provider) Option {
	return func(s *Store) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithHash sets the bucket hash function.
func WithHash(fn HashFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.hash = fn
		}
	}
}

// New creates a store with bucketCount buckets. bucketCount <= 0 selects
// DefaultBucketCount.
func New(bucketCount int, opts ...Option) *Store {
	if bucketCount <= 0 {
		bucketCount = DefaultBucketCount
	}

	s := &Store{
		buckets: make([]atomic.Pointer[node], bucketCount),
		hash:    Murmur3,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.provider == nil {
		s.provider = arena.New()
	}
	return s
}

func (s *Store) bucket(key string) *atomic.Pointer[node] {
	return &s.buckets[s.hash(key)%uint64(len(s.buckets))]
}

// Get returns the current value of key. The returned slice is a shared
// snapshot and must not be modified. A hit increments the success counter
// and a miss the failure counter.
func (s *Store) Get(key string) ([]byte, bool) {
	v := s.Load(key)
	if v == nil {
		return nil, false
	}
	return v.data, true
}

// Load is Get returning the Value snapshot itself.
func (s *Store) Load(key string) *Value {
	for n := s.bucket(key).Load(); n != nil; n = n.next.Load() {
		if n.key == key {
			s.hits.Add(1)
			return n.value.Load()
		}
	}
	s.misses.Add(1)
	return nil
}

// Set stores a copy of value under key, inserting the key if absent.
// It never blocks.
func (s *Store) Set(key string, value []byte) {
	s.insert(key, newValue(value))
}

// InitialSet is the bulk-load entry point used before the store is shared.
// It behaves exactly like Set.
func (s *Store) InitialSet(key string, value []byte) {
	s.insert(key, newValue(value))
}

func (s *Store) insert(key string, v *Value) {
	head := s.bucket(key)

	// fresh is built at most once and reused across lost CAS attempts.
	var fresh *node

	n := head.Load()
	if n == nil {
		fresh = newNode(s.provider.Current(), key, v)
		if head.CompareAndSwap(nil, fresh) {
			s.keys.Add(1)
			return
		}
		n = head.Load()
	}

	for {
		if n.key == key {
			n.value.Store(v)
			if fresh != nil {
				fresh.free()
			}
			return
		}

		next := n.next.Load()
		if next != nil {
			n = next
			continue
		}

		if fresh == nil {
			fresh = newNode(s.provider.Current(), key, v)
		}
		if n.next.CompareAndSwap(nil, fresh) {
			s.keys.Add(1)
			return
		}
		// Lost the race for the tail; n.next is now set, continue from it.
	}
}

// Range calls fn for every key until fn returns false. Values are
// snapshots; a concurrent Set yields either the old or the new value.
func (s *Store) Range(fn func(key string, value []byte) bool) {
	for i := range s.buckets {
		for n := s.buckets[i].Load(); n != nil; n = n.next.Load() {
			if !fn(n.key, n.value.Load().data) {
				return
			}
		}
	}
}

// Enumerate calls fn once for every key in the store.
func (s *Store) Enumerate(fn func(key string, value []byte)) {
	s.Range(func(key string, value []byte) bool {
		fn(key, value)
		return true
	})
}

// ReadStatistics returns the success and failure read counters.
func (s *Store) ReadStatistics() Statistics {
	return Statistics{
		Success: s.hits.Load(),
		Failure: s.misses.Load(),
	}
}

// IsLockFree reports whether the atomics the store relies on are lock-free
// on this platform. The answer does not change during the process lifetime.
func (s *Store) IsLockFree() bool {
	return lockFree
}

// Len returns the number of keys.
func (s *Store) Len() int {
	return int(s.keys.Load())
}

// BucketCount returns the number of buckets.
func (s *Store) BucketCount() int {
	return len(s.buckets)
}

// Provider returns the allocation context provider.
func (s *Store) Provider() arena.Provider {
	return s.provider
}

// Close tears the store down. Each bucket is walked once and every node's
// key storage is returned to the context that allocated it. Close must not
// run concurrently with any other method; calling it again is a no-op.
func (s *Store) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	for i := range s.buckets {
		n := s.buckets[i].Swap(nil)
		for n != nil {
			next := n.next.Load()
			n.free()
			n = next
		}
	}
	s.keys.Store(0)
}
