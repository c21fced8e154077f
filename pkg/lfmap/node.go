package lfmap

import (
	"sync/atomic"
	"unsafe"

	"github.com/yndnr/kvmesh-go/pkg/arena"
)

// Value is an immutable snapshot of a stored value. Replacing a key's value
// publishes a new Value; holders of the old one keep seeing it unchanged.
type Value struct {
	data []byte
}

func newValue(b []byte) *Value {
	data := make([]byte, len(b))
	copy(data, b)
	return &Value{data: data}
}

// Bytes returns the payload. It must not be modified.
func (v *Value) Bytes() []byte {
	return v.data
}

// Len returns the payload length.
func (v *Value) Len() int {
	return len(v.data)
}

type node struct {
	key   string // backed by bytes from ctx; immutable
	value atomic.Pointer[Value]
	next  atomic.Pointer[node]
	ctx   arena.Context
}

func newNode(ctx arena.Context, key string, v *Value) *node {
	n := &node{ctx: ctx}
	if len(key) > 0 {
		buf := ctx.Alloc(len(key))
		copy(buf, key)
		n.key = unsafe.String(unsafe.SliceData(buf), len(buf))
	}
	n.value.Store(v)
	return n
}

// free returns the key storage to the context that allocated it.
func (n *node) free() {
	n.ctx.Free(unsafeBytes(n.key))
	n.key = ""
}
