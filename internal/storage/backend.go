package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
	"github.com/yndnr/kvmesh-go/pkg/crypto/adaptive"
)

// Backend names.
const (
	BackendJSON     = "json"
	BackendSnapshot = "snapshot"
	BackendBadger   = "badger"
)

// snapshotKeyInfo separates the snapshot key from other keys derived from
// the same secret.
const snapshotKeyInfo = "kvmesh snapshot v1"

var (
	ErrUnknownBackend = errors.New("storage: unknown backend")
	ErrClosed         = errors.New("storage: backend closed")
)

// Backend stores the full dataset.
type Backend interface {
	// Name returns the backend name.
	Name() string

	// Load calls fn for every stored record. A missing database is not an
	// error. Load stops at the first error fn returns.
	Load(ctx context.Context, fn func(key string, value []byte) error) error

	// Save replaces the stored dataset with records.
	Save(ctx context.Context, records iter.Seq2[string, []byte]) error

	// Close releases the backend.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string

	// Path is the database file of the json backend.
	Path string

	// Dir is the directory of the snapshot and badger backends.
	Dir string

	SnapshotKeep        int
	SnapshotKeepDays    int
	SnapshotCompression string

	// EncryptionKey enables snapshot encryption. It is a master secret;
	// the cipher key is derived from it.
	EncryptionKey []byte

	Badger BadgerConfig
}

// DefaultConfig returns the default configuration: a JSON document named
// database.json in the working directory.
func DefaultConfig() Config {
	return Config{
		Backend:             BackendJSON,
		Path:                "database.json",
		Dir:                 "data",
		SnapshotKeep:        snapshot.DefaultRetentionCount,
		SnapshotKeepDays:    snapshot.DefaultRetentionDays,
		SnapshotCompression: snapshot.CompressionNone,
		Badger:              DefaultBadgerConfig(),
	}
}

// Open creates the backend named in cfg.
func Open(cfg Config, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendJSON:
		return NewJSONFileBackend(cfg.Path)

	case BackendSnapshot:
		scfg := snapshot.Config{
			Dir:            cfg.Dir,
			RetentionCount: cfg.SnapshotKeep,
			RetentionDays:  cfg.SnapshotKeepDays,
			Compression:    cfg.SnapshotCompression,
		}
		if len(cfg.EncryptionKey) > 0 {
			key, err := adaptive.DeriveKey(cfg.EncryptionKey, snapshotKeyInfo)
			if err != nil {
				return nil, fmt.Errorf("storage: snapshot key: %w", err)
			}
			c, err := adaptive.New(key)
			adaptive.ZeroKey(key)
			if err != nil {
				return nil, fmt.Errorf("storage: snapshot cipher: %w", err)
			}
			scfg.Cipher = c
		}
		m, err := snapshot.NewManager(scfg)
		if err != nil {
			return nil, err
		}
		return NewSnapshotBackend(m, logger), nil

	case BackendBadger:
		return NewBadgerBackend(cfg.Dir, cfg.Badger, logger)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
