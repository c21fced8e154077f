package benchmark

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/pkg/arena"
)

// backendConfigs returns the persistence layouts to compare.
func backendConfigs(dir string) map[string]storage.Config {
	base := storage.DefaultConfig()

	jsonCfg := base
	jsonCfg.Path = filepath.Join(dir, "database.json")

	snap := base
	snap.Backend = storage.BackendSnapshot
	snap.Dir = filepath.Join(dir, "snap")

	zstd := snap
	zstd.Dir = filepath.Join(dir, "snap-zstd")
	zstd.SnapshotCompression = snapshot.CompressionZstd

	sealed := zstd
	sealed.Dir = filepath.Join(dir, "snap-sealed")
	sealed.EncryptionKey = []byte(strings.Repeat("k", 32))

	badger := base
	badger.Backend = storage.BackendBadger
	badger.Dir = filepath.Join(dir, "badger")
	badger.Badger.GCInterval = 0

	return map[string]storage.Config{
		"json":          jsonCfg,
		"snapshot":      snap,
		"snapshot_zstd": zstd,
		"snapshot_enc":  sealed,
		"badger":        badger,
	}
}

func openBackend(b *testing.B, cfg storage.Config) storage.Backend {
	b.Helper()
	backend, err := storage.Open(cfg, logger.Discard())
	if err != nil {
		b.Fatalf("Open(%s) failed: %v", cfg.Backend, err)
	}
	b.Cleanup(func() { _ = backend.Close() })
	return backend
}

// BenchmarkSave measures writing a full dataset to each backend.
func BenchmarkSave(b *testing.B) {
	for name, cfg := range backendConfigs(b.TempDir()) {
		b.Run(name, func(b *testing.B) {
			runWithKeyCounts(b, SmallKeyCounts, func(b *testing.B, count int) {
				ctx := context.Background()
				store := newStore(b, count, arena.StrategyShared)
				prefillStore(store, count)
				backend := openBackend(b, cfg)

				b.ResetTimer()
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := storage.SaveAll(ctx, store, backend); err != nil {
						b.Fatalf("SaveAll failed: %v", err)
					}
				}
			})
		})
	}
}

// BenchmarkLoad measures the startup load from each backend.
func BenchmarkLoad(b *testing.B) {
	for name, cfg := range backendConfigs(b.TempDir()) {
		b.Run(name, func(b *testing.B) {
			runWithKeyCounts(b, SmallKeyCounts, func(b *testing.B, count int) {
				ctx := context.Background()
				src := newStore(b, count, arena.StrategyShared)
				prefillStore(src, count)
				backend := openBackend(b, cfg)
				if _, err := storage.SaveAll(ctx, src, backend); err != nil {
					b.Fatalf("SaveAll failed: %v", err)
				}

				b.ResetTimer()
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					b.StopTimer()
					dst := newStore(b, count, arena.StrategyShared)
					b.StartTimer()

					n, err := storage.InitialLoad(ctx, dst, backend)
					if err != nil {
						b.Fatalf("InitialLoad failed: %v", err)
					}
					if n != count {
						b.Fatalf("loaded %d records, want %d", n, count)
					}
				}
				b.StopTimer()
				reportMemory(b, "mem")
			})
		})
	}
}
