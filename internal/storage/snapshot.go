package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/yndnr/kvmesh-go/internal/storage/record"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
)

// SnapshotBackend stores the dataset as snapshot files. Every Save creates
// a new snapshot and prunes old ones; Load reads the newest valid one.
type SnapshotBackend struct {
	manager *snapshot.Manager
	logger  *slog.Logger
}

// NewSnapshotBackend wraps a snapshot manager.
func NewSnapshotBackend(m *snapshot.Manager, logger *slog.Logger) *SnapshotBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotBackend{manager: m, logger: logger}
}

// Name implements Backend.
func (b *SnapshotBackend) Name() string { return BackendSnapshot }

// Load implements Backend.
func (b *SnapshotBackend) Load(ctx context.Context, fn func(key string, value []byte) error) error {
	recs, info, err := b.manager.Load()
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshots) {
			b.logger.Info("no snapshot found, starting with empty store")
			return nil
		}
		return err
	}

	b.logger.Info("snapshot selected",
		"id", info.ID,
		"records", info.RecordCount,
		"size_bytes", info.Size,
		"encrypted", info.Encrypted)

	for i, r := range recs {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		key, value, err := r.Decode()
		if err != nil {
			return fmt.Errorf("snapshot %s: record %d: %w", info.ID, i, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Save implements Backend.
func (b *SnapshotBackend) Save(ctx context.Context, records iter.Seq2[string, []byte]) error {
	var recs []record.Record
	for key, value := range records {
		if len(recs)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		recs = append(recs, record.New(key, value))
	}

	info, err := b.manager.Create(recs)
	if err != nil {
		return err
	}
	b.logger.Info("snapshot created",
		"id", info.ID,
		"records", info.RecordCount,
		"size_bytes", info.Size)

	if err := b.manager.Prune(); err != nil {
		b.logger.Warn("snapshot cleanup failed", "error", err)
	}
	return nil
}

// Close implements Backend.
func (b *SnapshotBackend) Close() error { return nil }
