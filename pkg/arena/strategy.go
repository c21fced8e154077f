package arena

import (
	"fmt"
	"strings"
)

// Strategy names accepted by ParseStrategy.
const (
	StrategyShared  = "shared"
	StrategySharded = "sharded"
)

// Strategy decides which heap serves a registry slot.
//
// HeapFor is called once per slot, under the registry's write lock.
type Strategy interface {
	Name() string
	HeapFor(slot int) *Heap
}

// SharedStrategy routes every slot to a single heap.
type SharedStrategy struct {
	heap *Heap
}

// NewSharedStrategy creates a SharedStrategy backed by one heap.
func NewSharedStrategy(chunkSize int) *SharedStrategy {
	return &SharedStrategy{heap: NewHeap(0, chunkSize)}
}

// Name implements Strategy.
func (s *SharedStrategy) Name() string { return StrategyShared }

// HeapFor implements Strategy.
func (s *SharedStrategy) HeapFor(int) *Heap { return s.heap }

// ShardedStrategy gives every slot its own heap.
type ShardedStrategy struct {
	chunkSize int
}

// NewShardedStrategy creates a ShardedStrategy.
func NewShardedStrategy(chunkSize int) *ShardedStrategy {
	return &ShardedStrategy{chunkSize: chunkSize}
}

// Name implements Strategy.
func (s *ShardedStrategy) Name() string { return StrategySharded }

// HeapFor implements Strategy.
func (s *ShardedStrategy) HeapFor(slot int) *Heap {
	return NewHeap(slot, s.chunkSize)
}

// ParseStrategy builds a strategy from its configuration name.
// An empty name selects the shared strategy.
func ParseStrategy(name string, chunkSize int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyShared:
		return NewSharedStrategy(chunkSize), nil
	case StrategySharded:
		return NewShardedStrategy(chunkSize), nil
	default:
		return nil, fmt.Errorf("arena: unknown strategy %q", name)
	}
}
