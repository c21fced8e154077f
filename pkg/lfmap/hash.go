package lfmap

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// HashFunc maps a key to a 64-bit hash. The bucket index is the hash
// modulo the bucket count.
type HashFunc func(key string) uint64

// Murmur3 hashes keys with MurmurHash3 (64-bit). It is the default.
func Murmur3(key string) uint64 {
	return murmur3.Sum64(unsafeBytes(key))
}

// XXHash hashes keys with xxHash64.
func XXHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// ParseHash returns the hash function registered under name.
func ParseHash(name string) (HashFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "murmur3":
		return Murmur3, nil
	case "xxhash":
		return XXHash, nil
	default:
		return nil, fmt.Errorf("lfmap: unknown hash %q", name)
	}
}

// unsafeBytes views s as a byte slice. The result must not be modified.
func unsafeBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
