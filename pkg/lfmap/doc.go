// Package lfmap provides the lock-free bucketed key-value store behind kvmesh.
//
// The store is a fixed-size array of buckets. Each bucket is a singly linked
// list of nodes published with compare-and-swap, and each node holds an
// atomically swappable pointer to an immutable value:
//
//   - Lock-free: Get and Set never block; contention only causes retries
//   - Append-only: a node lives until the store is closed
//   - Snapshot reads: a value returned by Get never changes afterwards
//   - Fixed size: the bucket count is chosen once and never resized
//
// Usage:
//
//	s := lfmap.New(2 * expectedKeys)
//	s.Set("user:1", []byte("alice"))
//	v, ok := s.Get("user:1")
//
// Thread Safety:
//
// Get, Set, InitialSet, Range, Enumerate and ReadStatistics are safe for
// concurrent use. Close is not; call it once, after every other user is
// done. All atomics in sync/atomic are sequentially consistent, which
// covers the acquire/release pairing node publication relies on.
package lfmap
