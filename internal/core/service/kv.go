package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/pkg/arena"
	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

// Store is the storage the service runs on. *lfmap.Store implements it.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Range(fn func(key string, value []byte) bool)
	ReadStatistics() lfmap.Statistics
	ChainStats() lfmap.ChainStats
	IsLockFree() bool
	Len() int
	BucketCount() int
	Provider() arena.Provider
}

// SnapshotFunc persists the store on demand and returns the number of
// records written.
type SnapshotFunc func(ctx context.Context) (int, error)

// Default and maximum page sizes for List.
const (
	DefaultListLimit = 1000
	MaxListLimit     = 100_000
)

// KVService implements the key-value operations exposed to clients.
type KVService struct {
	store    Store
	limits   domain.Limits
	snapshot SnapshotFunc
	logger   *slog.Logger

	// snapMu serialises on-demand snapshots.
	snapMu sync.Mutex
}

// Option configures a KVService.
type Option func(*KVService)

// WithLimits sets client-facing size limits.
func WithLimits(l domain.Limits) Option {
	return func(s *KVService) { s.limits = l }
}

// WithSnapshot enables on-demand snapshots.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(s *KVService) { s.snapshot = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *KVService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewKVService creates a KVService.
func NewKVService(store Store, opts ...Option) *KVService {
	s := &KVService{
		store:  store,
		limits: domain.DefaultLimits(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the configured limits.
func (s *KVService) Limits() domain.Limits {
	return s.limits
}

// Get returns the value of key or domain.ErrKeyNotFound.
// The returned slice is shared and must not be modified.
func (s *KVService) Get(_ context.Context, key string) ([]byte, error) {
	if err := s.limits.ValidateKey(key); err != nil {
		return nil, err
	}
	v, ok := s.store.Get(key)
	if !ok {
		return nil, domain.ErrKeyNotFound.WithDetails(key)
	}
	return v, nil
}

// Set stores value under key.
func (s *KVService) Set(_ context.Context, key string, value []byte) error {
	if err := s.limits.ValidateKey(key); err != nil {
		return err
	}
	if err := s.limits.ValidateValue(value); err != nil {
		return err
	}
	s.store.Set(key, value)
	return nil
}

// MGet returns the values of keys in order; missing keys yield nil.
func (s *KVService) MGet(_ context.Context, keys []string) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := s.store.Get(k); ok {
			out[i] = v
		}
	}
	return out
}

// Exists counts how many of keys are present. Repeated keys count
// repeatedly.
func (s *KVService) Exists(_ context.Context, keys ...string) int {
	n := 0
	for _, k := range keys {
		if _, ok := s.store.Get(k); ok {
			n++
		}
	}
	return n
}

// List returns up to limit entries in unspecified order. truncated reports
// whether more entries exist.
func (s *KVService) List(ctx context.Context, limit int) (entries []domain.Entry, truncated bool) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	entries = make([]domain.Entry, 0, min(limit, s.store.Len()))
	s.store.Range(func(key string, value []byte) bool {
		if len(entries) == limit {
			truncated = true
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		entries = append(entries, domain.Entry{Key: key, Value: string(value)})
		return true
	})
	return entries, truncated
}

// Len returns the number of keys.
func (s *KVService) Len() int {
	return s.store.Len()
}

// Stats describes the store.
type Stats struct {
	Reads      lfmap.Statistics  `json:"reads"`
	Keys       int               `json:"keys"`
	Buckets    int               `json:"buckets"`
	LockFree   bool              `json:"lock_free"`
	Chains     *lfmap.ChainStats `json:"chains,omitempty"`
	Arena      arena.Stats       `json:"arena"`
	ArenaHeaps int               `json:"arena_heaps,omitempty"`
}

// Stats returns store statistics. withChains walks every bucket and is
// O(keys).
func (s *KVService) Stats(_ context.Context, withChains bool) Stats {
	st := Stats{
		Reads:    s.store.ReadStatistics(),
		Keys:     s.store.Len(),
		Buckets:  s.store.BucketCount(),
		LockFree: s.store.IsLockFree(),
	}
	if withChains {
		cs := s.store.ChainStats()
		st.Chains = &cs
	}
	if p := s.store.Provider(); p != nil {
		st.Arena = p.Stats()
		if r, ok := p.(*arena.Registry); ok {
			st.ArenaHeaps = r.Heaps()
		}
	}
	return st
}

// SnapshotResult describes an on-demand snapshot.
type SnapshotResult struct {
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration_ns"`
}

// Snapshot persists the store while it keeps serving. Concurrent calls are
// serialised.
func (s *KVService) Snapshot(ctx context.Context) (*SnapshotResult, error) {
	if s.snapshot == nil {
		return nil, domain.ErrServiceDisabled.WithDetails("snapshots are not configured")
	}

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	start := time.Now()
	n, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Error("snapshot failed", "error", err)
		return nil, domain.ErrPersistence.WithCause(err)
	}

	res := &SnapshotResult{Records: n, Duration: time.Since(start)}
	s.logger.Info("snapshot written", "records", n, "duration", res.Duration)
	return res, nil
}
