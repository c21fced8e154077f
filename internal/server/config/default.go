package config

import (
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
	"github.com/yndnr/kvmesh-go/pkg/arena"
	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:8000"
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultRateBurst       = 50
	DefaultMaxConnections  = 10000

	DefaultHash = "murmur3"

	DefaultLogLevel  = "debug"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:          DefaultHTTPAddr,
				RateBurst:     DefaultRateBurst,
				MaxValueBytes: domain.DefaultMaxValueBytes,
				MaxKeyBytes:   domain.DefaultMaxKeyBytes,
				ReadTimeout:   DefaultReadTimeout,
				WriteTimeout:  DefaultWriteTimeout,
			},
			Redis: RedisConfig{
				Addr:           DefaultRedisAddr,
				MaxConnections: DefaultMaxConnections,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageSection{
			ExpectedKeys:     lfmap.DefaultExpectedKeys,
			Hash:             DefaultHash,
			Backend:          storage.BackendJSON,
			Path:             storage.DefaultConfig().Path,
			Dir:              storage.DefaultConfig().Dir,
			AllowPartialLoad: true,
			SaveOnShutdown:   true,
			Snapshot: SnapshotConfig{
				Keep:        snapshot.DefaultRetentionCount,
				KeepDays:    snapshot.DefaultRetentionDays,
				Compression: snapshot.CompressionNone,
			},
			Badger: BadgerConfig{
				GCInterval: storage.DefaultBadgerConfig().GCInterval,
				SyncWrites: true,
			},
		},
		Arena: ArenaSection{
			Strategy:  arena.StrategyShared,
			ChunkSize: arena.DefaultChunkSize,
		},
		Log: LogSection{
			Level:       DefaultLogLevel,
			Format:      DefaultLogFormat,
			EachRequest: true,
		},
	}
}
