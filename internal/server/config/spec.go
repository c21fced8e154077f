package config

import (
	"time"

	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

// ServerConfig is the root configuration for kvmesh-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Arena    ArenaSection    `koanf:"arena"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures the network endpoints.
type ServerSection struct {
	HTTP            HTTPConfig    `koanf:"http"`
	Redis           RedisConfig   `koanf:"redis"`
	Local           LocalConfig   `koanf:"local"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
	// RateLimit is the per-client request rate in requests per second.
	// Zero disables limiting.
	RateLimit     float64 `koanf:"rate_limit"`
	RateBurst     int     `koanf:"rate_burst"`
	MaxValueBytes int     `koanf:"max_value_bytes"`
	MaxKeyBytes   int     `koanf:"max_key_bytes"`

	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// RedisConfig configures the RESP server.
type RedisConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Addr           string `koanf:"addr"`
	MaxConnections int    `koanf:"max_connections"`
}

// LocalConfig configures the Unix socket admin listener.
type LocalConfig struct {
	// Socket is the socket path. Empty disables the listener.
	Socket string `koanf:"socket"`
}

// StorageSection configures the store and its persistence.
type StorageSection struct {
	ExpectedKeys int `koanf:"expected_keys"`
	// Buckets overrides the 2 x ExpectedKeys sizing when positive.
	Buckets int    `koanf:"buckets"`
	Hash    string `koanf:"hash"`

	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	Dir     string `koanf:"dir"`

	AllowPartialLoad bool          `koanf:"allow_partial_load"`
	SaveOnShutdown   bool          `koanf:"save_on_shutdown"`
	SaveInterval     time.Duration `koanf:"save_interval"`

	Snapshot SnapshotConfig `koanf:"snapshot"`
	Badger   BadgerConfig   `koanf:"badger"`
}

// SnapshotConfig configures the snapshot backend.
type SnapshotConfig struct {
	Keep        int    `koanf:"keep"`
	KeepDays    int    `koanf:"keep_days"`
	Compression string `koanf:"compression"`
}

// BadgerConfig configures the badger backend.
type BadgerConfig struct {
	GCInterval time.Duration `koanf:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes"`
}

// ArenaSection configures key allocation.
type ArenaSection struct {
	Strategy  string `koanf:"strategy"`
	Slots     int    `koanf:"slots"`
	ChunkSize int    `koanf:"chunk_size"`
}

// SecuritySection configures encryption at rest.
type SecuritySection struct {
	// EncryptionKey is a secret from which the snapshot key is derived.
	EncryptionKey string `koanf:"encryption_key"`
}

// LogSection configures logging.
type LogSection struct {
	Level       string `koanf:"level"`
	Format      string `koanf:"format"`
	EachRequest bool   `koanf:"each_request"`
}

// BucketCount returns the bucket array size implied by the storage section.
// Sizes past lfmap.MaxBucketCount are clamped to it; Verify rejects them.
func (s StorageSection) BucketCount() int {
	if s.Buckets > 0 {
		return min(s.Buckets, lfmap.MaxBucketCount)
	}
	if s.ExpectedKeys > lfmap.MaxBucketCount/2 {
		return lfmap.MaxBucketCount
	}
	return 2 * s.ExpectedKeys
}
