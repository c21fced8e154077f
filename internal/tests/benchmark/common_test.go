package benchmark

import (
	"crypto/rand"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/yndnr/kvmesh-go/pkg/arena"
	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

// KeyCounts defines the dataset sizes for benchmarking.
var KeyCounts = []int{10000, 100000, 500000, 1000000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000, 50000}

// ValueSize is the payload size of generated records.
const ValueSize = 128

// newKey generates a unique, roughly time-ordered key.
func newKey() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, _ := ulid.New(ulid.Timestamp(time.Now()), entropy)
	return "user:" + strings.ToLower(id.String())
}

// newValue returns a value of n bytes.
func newValue(n int) []byte {
	v := make([]byte, n)
	_, _ = rand.Read(v)
	return v
}

// newStore creates a store sized for count keys.
func newStore(b *testing.B, count int, strategy string) *lfmap.Store {
	b.Helper()
	s, err := arena.ParseStrategy(strategy, 0)
	if err != nil {
		b.Fatal(err)
	}
	store := lfmap.New(2*count, lfmap.WithProvider(arena.New(arena.WithStrategy(s))))
	b.Cleanup(store.Close)
	return store
}

// prefillStore loads count records and returns their keys.
func prefillStore(store *lfmap.Store, count int) []string {
	keys := make([]string, count)
	value := newValue(ValueSize)
	for i := range keys {
		keys[i] = newKey()
		store.InitialSet(keys[i], value)
	}
	return keys
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithKeyCounts runs a benchmark function with various dataset sizes.
func runWithKeyCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
