package storage

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// BulkLoader receives records during the startup load.
type BulkLoader interface {
	InitialSet(key string, value []byte)
}

// Enumerator yields every record of a store.
type Enumerator interface {
	Enumerate(fn func(key string, value []byte))
}

// InitialLoad streams every record of b into dst and returns how many were
// loaded. On failure the count covers the records loaded before the error.
func InitialLoad(ctx context.Context, dst BulkLoader, b Backend) (int, error) {
	n := 0
	err := b.Load(ctx, func(key string, value []byte) error {
		dst.InitialSet(key, value)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("storage: load from %s: %w", b.Name(), err)
	}
	return n, nil
}

// SaveAll writes every record of src to b and returns how many were
// written.
func SaveAll(ctx context.Context, src Enumerator, b Backend) (int, error) {
	n := 0
	if err := b.Save(ctx, records(src, &n)); err != nil {
		return n, fmt.Errorf("storage: save to %s: %w", b.Name(), err)
	}
	return n, nil
}

// records adapts an Enumerator to an iterator and counts yielded records.
// Enumerate cannot stop early, so records after a stop are skipped.
func records(src Enumerator, n *int) iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		stopped := false
		src.Enumerate(func(key string, value []byte) {
			if stopped {
				return
			}
			if !yield(key, value) {
				stopped = true
				return
			}
			*n++
		})
	}
}

// Persister drives one backend: recovery at startup, saves on demand, on
// an optional interval and at shutdown.
type Persister struct {
	backend Backend
	logger  *slog.Logger

	// mu serialises saves.
	mu sync.Mutex

	lastSaveAt    atomic.Int64 // unix ms
	lastSaveCount atomic.Int64

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewPersister creates a Persister for backend.
func NewPersister(backend Backend, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		backend: backend,
		logger:  logger.With("backend", backend.Name()),
		stopCh:  make(chan struct{}),
	}
}

// Backend returns the underlying backend.
func (p *Persister) Backend() Backend {
	return p.backend
}

// Recover bulk-loads the backend into dst. It must run before dst is
// shared between goroutines.
func (p *Persister) Recover(ctx context.Context, dst BulkLoader) (int, error) {
	start := time.Now()
	p.logger.Info("loading database")

	n, err := InitialLoad(ctx, dst, p.backend)
	if err != nil {
		p.logger.Error("database load failed",
			"records_loaded", n,
			"error", err)
		return n, err
	}

	p.logger.Info("database loaded",
		"records", n,
		"elapsed", time.Since(start))
	return n, nil
}

// Save writes src to the backend.
func (p *Persister) Save(ctx context.Context, src Enumerator) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	n, err := SaveAll(ctx, src, p.backend)
	if err != nil {
		p.logger.Error("database save failed", "error", err)
		return n, err
	}

	p.lastSaveAt.Store(time.Now().UnixMilli())
	p.lastSaveCount.Store(int64(n))
	p.logger.Info("database saved",
		"records", n,
		"elapsed", time.Since(start))
	return n, nil
}

// LastSave returns the time and record count of the last successful save.
func (p *Persister) LastSave() (time.Time, int) {
	ms := p.lastSaveAt.Load()
	if ms == 0 {
		return time.Time{}, 0
	}
	return time.UnixMilli(ms), int(p.lastSaveCount.Load())
}

// StartAutoSave saves src every interval until Close. Saves race with
// concurrent writers; each value is written whole, either old or new.
func (p *Persister) StartAutoSave(src Enumerator, interval time.Duration) {
	if interval <= 0 || p.doneCh != nil {
		return
	}
	p.doneCh = make(chan struct{})

	go func() {
		defer close(p.doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				_, _ = p.Save(ctx, src)
				cancel()

			case <-p.stopCh:
				return
			}
		}
	}()
}

// Close stops the auto-save loop and closes the backend.
func (p *Persister) Close() error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.doneCh != nil {
		<-p.doneCh
	}
	if err := p.backend.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", p.backend.Name(), err)
	}
	return nil
}
