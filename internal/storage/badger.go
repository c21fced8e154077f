package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerConfig contains Badger tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between value log GC runs. Zero disables
	// the background loop.
	GCInterval time.Duration

	// GCThreshold is the discard ratio that triggers a value log rewrite.
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	ValueLogFileSize int64

	// SyncWrites fsyncs after every write batch.
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,
		ValueLogFileSize: 256 << 20,
		SyncWrites:       true,
	}
}

// BadgerBackend stores the dataset in an embedded Badger database. Save
// drops the previous contents and writes every record in one write batch.
type BadgerBackend struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	lastGCTime atomic.Int64 // unix ms

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewBadgerBackend opens (or creates) a Badger database in dir.
func NewBadgerBackend(dir string, cfg BadgerConfig, logger *slog.Logger) (*BadgerBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLogger{logger: logger}
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	b := &BadgerBackend{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go b.gcLoop()

	logger.Info("badger backend opened",
		"dir", dir,
		"cache_size", cfg.CacheSize,
		"gc_interval", cfg.GCInterval)
	return b, nil
}

// Name implements Backend.
func (b *BadgerBackend) Name() string { return BackendBadger }

// Load implements Backend.
func (b *BadgerBackend) Load(ctx context.Context, fn func(key string, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		i := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			i++

			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("badger: read %q: %w", item.Key(), err)
			}
			if err := fn(string(item.Key()), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Save implements Backend.
func (b *BadgerBackend) Save(ctx context.Context, records iter.Seq2[string, []byte]) error {
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("badger: drop previous dataset: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	i := 0
	for key, value := range records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		i++
		if key == "" {
			b.logger.Warn("badger cannot store an empty key, skipping record")
			continue
		}
		// Badger keeps the slices until Flush; value snapshots are
		// immutable and keys are copied.
		if err := wb.Set([]byte(key), value); err != nil {
			return fmt.Errorf("badger: write %q: %w", key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger: flush: %w", err)
	}
	return nil
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (b *BadgerBackend) GC() (int, error) {
	runs := 0
	for {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return runs, fmt.Errorf("badger: gc: %w", err)
		}
		runs++
	}
	b.lastGCTime.Store(time.Now().UnixMilli())
	return runs, nil
}

// Size returns the LSM tree and value log sizes in bytes.
func (b *BadgerBackend) Size() (lsm, vlog int64) {
	return b.db.Size()
}

// Close implements Backend.
func (b *BadgerBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
		if cerr := b.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
		}
	})
	return err
}

// RegisterMetrics registers size and GC gauges with registry.
func (b *BadgerBackend) RegisterMetrics(registry prometheus.Registerer) {
	b.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvmesh",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes.",
	})
	b.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvmesh",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes.",
	})
	b.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvmesh",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last value log GC.",
	})
	registry.MustRegister(b.metricsLSMSize, b.metricsValueLogSize, b.metricsLastGCTime)
	b.updateMetrics()
}

func (b *BadgerBackend) updateMetrics() {
	if b.metricsLSMSize == nil {
		return
	}
	lsm, vlog := b.db.Size()
	b.metricsLSMSize.Set(float64(lsm))
	b.metricsValueLogSize.Set(float64(vlog))
	if ms := b.lastGCTime.Load(); ms > 0 {
		b.metricsLastGCTime.Set(float64(ms) / 1000)
	}
}

// gcLoop runs periodic value log GC and refreshes metrics.
func (b *BadgerBackend) gcLoop() {
	defer close(b.doneCh)

	if b.cfg.GCInterval <= 0 {
		<-b.stopCh
		return
	}

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := b.GC(); err != nil {
				b.logger.Error("badger gc failed", "error", err)
			}
			b.updateMetrics()

		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
