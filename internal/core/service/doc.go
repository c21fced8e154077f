// Package service provides the kvmesh key-value service.
//
// KVService sits between the transports (HTTP, RESP) and the lock-free
// store. It validates client input against domain.Limits, maps misses to
// domain errors and assembles statistics. The store itself performs no
// validation.
//
// KVService is safe for concurrent use.
package service
