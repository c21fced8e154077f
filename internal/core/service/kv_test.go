package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

func newTestService(t *testing.T, opts ...Option) (*KVService, *lfmap.Store) {
	t.Helper()
	store := lfmap.New(64)
	t.Cleanup(store.Close)
	return NewKVService(store, opts...), store
}

func TestKVService_GetSet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "user:1", []byte("alice")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := svc.Get(ctx, "user:1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "alice" {
		t.Errorf("Get() = %q, want %q", got, "alice")
	}

	_, err = svc.Get(ctx, "user:2")
	if !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrKeyNotFound", err)
	}
}

func TestKVService_Validation(t *testing.T) {
	svc, store := newTestService(t, WithLimits(domain.Limits{MaxKeyBytes: 8, MaxValueBytes: 4}))
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value string
		want  error
	}{
		{"empty key", "", "v", domain.ErrKeyEmpty},
		{"long key", "123456789", "v", domain.ErrKeyTooLong},
		{"large value", "k", "12345", domain.ErrValueTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Set(ctx, tt.key, []byte(tt.value))
			if !errors.Is(err, tt.want) {
				t.Errorf("Set() error = %v, want %v", err, tt.want)
			}
		})
	}

	if store.Len() != 0 {
		t.Errorf("rejected writes must not reach the store, Len() = %d", store.Len())
	}
}

func TestKVService_MGetExists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_ = svc.Set(ctx, "a", []byte("1"))
	_ = svc.Set(ctx, "c", []byte("3"))

	got := svc.MGet(ctx, []string{"a", "b", "c"})
	if string(got[0]) != "1" || got[1] != nil || string(got[2]) != "3" {
		t.Errorf("MGet() = %q", got)
	}

	if n := svc.Exists(ctx, "a", "b", "a"); n != 2 {
		t.Errorf("Exists() = %d, want 2", n)
	}
}

func TestKVService_List(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := range 10 {
		_ = svc.Set(ctx, strconv.Itoa(i), []byte("v"))
	}

	entries, truncated := svc.List(ctx, 4)
	if len(entries) != 4 || !truncated {
		t.Errorf("List(4) = %d entries, truncated=%v; want 4, true", len(entries), truncated)
	}

	entries, truncated = svc.List(ctx, 0)
	if len(entries) != 10 || truncated {
		t.Errorf("List(0) = %d entries, truncated=%v; want 10, false", len(entries), truncated)
	}
}

func TestKVService_Stats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_ = svc.Set(ctx, "a", []byte("1"))
	_, _ = svc.Get(ctx, "a")
	_, _ = svc.Get(ctx, "b")

	st := svc.Stats(ctx, true)
	if st.Reads.Success != 1 || st.Reads.Failure != 1 {
		t.Errorf("Reads = %+v, want 1/1", st.Reads)
	}
	if st.Keys != 1 || st.Buckets != 64 {
		t.Errorf("Keys/Buckets = %d/%d, want 1/64", st.Keys, st.Buckets)
	}
	if st.Chains == nil || st.Chains.Keys != 1 {
		t.Errorf("Chains = %+v", st.Chains)
	}
	if st.Arena.LiveAllocs != 1 {
		t.Errorf("Arena.LiveAllocs = %d, want 1", st.Arena.LiveAllocs)
	}

	if svc.Stats(ctx, false).Chains != nil {
		t.Error("chains must be omitted when not requested")
	}
}

func TestKVService_Snapshot(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(t)
	if _, err := svc.Snapshot(ctx); !errors.Is(err, domain.ErrServiceDisabled) {
		t.Errorf("Snapshot() without func error = %v, want ErrServiceDisabled", err)
	}

	svc, _ = newTestService(t, WithSnapshot(func(context.Context) (int, error) { return 7, nil }))
	res, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if res.Records != 7 {
		t.Errorf("Records = %d, want 7", res.Records)
	}

	boom := errors.New("disk full")
	svc, _ = newTestService(t, WithSnapshot(func(context.Context) (int, error) { return 0, boom }))
	_, err = svc.Snapshot(ctx)
	if !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, boom) {
		t.Errorf("Snapshot() error = %v, want ErrPersistence wrapping cause", err)
	}
}
