// Package arena provides allocation contexts for kvmesh's lock-free store.
//
// A Provider hands out a Context to the calling goroutine. The Context
// carries a tag derived from the goroutine identity and the Heap that
// serves it. Every node in the store remembers the Context it was
// allocated from and is freed through that same Context.
//
// Which Heap backs a tag is decided by a Strategy:
//
//   - SharedStrategy: one Heap for every goroutine.
//   - ShardedStrategy: one Heap per registry slot.
//
// Usage:
//
//	p := arena.New(arena.WithStrategy(arena.NewShardedStrategy(0)))
//	ctx := p.Current()
//	buf := ctx.Alloc(16)
//	defer ctx.Free(buf)
//
// Thread Safety:
//
// Current and Alloc are safe for concurrent use. Registration of a new
// slot takes the registry's write lock; every later lookup only takes the
// read lock.
package arena
