// Package cmap provides a generic map split into independently locked
// shards.
//
// It serves bookkeeping tables on the request path, such as per-client
// rate limiters, where a single mutex would serialise every request:
//
//	m := cmap.New[string, *limiter](0)
//	l, _ := m.GetOrCompute(ip, newLimiter)
//
// Range and DeleteFunc lock one shard at a time, so they never observe a
// consistent snapshot of the whole map.
package cmap
