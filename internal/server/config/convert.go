package config

import (
	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/storage"
)

// StorageConfig builds the persistence configuration.
func (c *ServerConfig) StorageConfig() storage.Config {
	s := c.Storage
	cfg := storage.DefaultConfig()
	cfg.Backend = s.Backend
	cfg.Path = s.Path
	cfg.Dir = s.Dir
	cfg.SnapshotKeep = s.Snapshot.Keep
	cfg.SnapshotKeepDays = s.Snapshot.KeepDays
	cfg.SnapshotCompression = s.Snapshot.Compression
	cfg.Badger.GCInterval = s.Badger.GCInterval
	cfg.Badger.SyncWrites = s.Badger.SyncWrites
	if c.Security.EncryptionKey != "" {
		cfg.EncryptionKey = []byte(c.Security.EncryptionKey)
	}
	return cfg
}

// Limits returns the request size limits.
func (c *ServerConfig) Limits() domain.Limits {
	return domain.Limits{
		MaxKeyBytes:   c.Server.HTTP.MaxKeyBytes,
		MaxValueBytes: c.Server.HTTP.MaxValueBytes,
	}
}
