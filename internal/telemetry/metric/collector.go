package metric

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/kvmesh-go/internal/core/service"
)

// StatsSource is implemented by service.KVService.
type StatsSource interface {
	Stats(ctx context.Context, withChains bool) service.Stats
}

// StoreCollector reports store and arena statistics at scrape time.
type StoreCollector struct {
	src    StatsSource
	chains bool

	reads         *prometheus.Desc
	keys          *prometheus.Desc
	buckets       *prometheus.Desc
	lockFree      *prometheus.Desc
	chainMax      *prometheus.Desc
	loadFactor    *prometheus.Desc
	arenaReserved *prometheus.Desc
	arenaUsed     *prometheus.Desc
	arenaLive     *prometheus.Desc
	arenaChunks   *prometheus.Desc
	arenaHeaps    *prometheus.Desc
}

// NewStoreCollector creates a collector over src. When chains is true every
// scrape walks the bucket array to report chain lengths.
func NewStoreCollector(src StatsSource, chains bool) *StoreCollector {
	desc := func(sub, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, sub, name), help, labels, nil)
	}
	return &StoreCollector{
		src:           src,
		chains:        chains,
		reads:         desc("store", "reads_total", "Store reads by result.", "result"),
		keys:          desc("store", "keys", "Keys in the store."),
		buckets:       desc("store", "buckets", "Bucket array size."),
		lockFree:      desc("store", "lock_free", "1 if the platform provides lock-free atomics."),
		chainMax:      desc("store", "chain_max", "Longest bucket chain."),
		loadFactor:    desc("store", "load_factor", "Keys per bucket."),
		arenaReserved: desc("arena", "reserved_bytes", "Bytes held by arena chunks."),
		arenaUsed:     desc("arena", "used_bytes", "Bytes handed out by arenas and not freed."),
		arenaLive:     desc("arena", "live_allocations", "Arena allocations not yet freed."),
		arenaChunks:   desc("arena", "chunks_allocated_total", "Arena chunks ever created."),
		arenaHeaps:    desc("arena", "heaps", "Distinct arena heaps in use."),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reads
	ch <- c.keys
	ch <- c.buckets
	ch <- c.lockFree
	if c.chains {
		ch <- c.chainMax
		ch <- c.loadFactor
	}
	ch <- c.arenaReserved
	ch <- c.arenaUsed
	ch <- c.arenaLive
	ch <- c.arenaChunks
	ch <- c.arenaHeaps
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats(context.Background(), c.chains)

	ch <- prometheus.MustNewConstMetric(c.reads, prometheus.CounterValue, float64(st.Reads.Success), "hit")
	ch <- prometheus.MustNewConstMetric(c.reads, prometheus.CounterValue, float64(st.Reads.Failure), "miss")
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(st.Keys))
	ch <- prometheus.MustNewConstMetric(c.buckets, prometheus.GaugeValue, float64(st.Buckets))
	lockFree := 0.0
	if st.LockFree {
		lockFree = 1
	}
	ch <- prometheus.MustNewConstMetric(c.lockFree, prometheus.GaugeValue, lockFree)
	if c.chains && st.Chains != nil {
		ch <- prometheus.MustNewConstMetric(c.chainMax, prometheus.GaugeValue, float64(st.Chains.MaxChain))
		ch <- prometheus.MustNewConstMetric(c.loadFactor, prometheus.GaugeValue, st.Chains.LoadFactor)
	}
	ch <- prometheus.MustNewConstMetric(c.arenaReserved, prometheus.GaugeValue, float64(st.Arena.BytesReserved))
	ch <- prometheus.MustNewConstMetric(c.arenaUsed, prometheus.GaugeValue, float64(st.Arena.BytesUsed))
	ch <- prometheus.MustNewConstMetric(c.arenaLive, prometheus.GaugeValue, float64(st.Arena.LiveAllocs))
	ch <- prometheus.MustNewConstMetric(c.arenaChunks, prometheus.CounterValue, float64(st.Arena.ChunksAllocated))
	ch <- prometheus.MustNewConstMetric(c.arenaHeaps, prometheus.GaugeValue, float64(st.ArenaHeaps))
}
