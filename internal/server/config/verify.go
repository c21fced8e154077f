package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/kvmesh-go/internal/storage"
	"github.com/yndnr/kvmesh-go/internal/storage/snapshot"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/pkg/arena"
	"github.com/yndnr/kvmesh-go/pkg/crypto/adaptive"
	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

// Verify validates the configuration and returns every problem found.
func Verify(cfg *ServerConfig) error {
	var errs []error
	errs = append(errs, verifyServer(&cfg.Server)...)
	errs = append(errs, verifyStorage(&cfg.Storage)...)
	errs = append(errs, verifyArena(&cfg.Arena)...)
	errs = append(errs, verifySecurity(cfg)...)
	errs = append(errs, verifyLog(&cfg.Log)...)
	return errors.Join(errs...)
}

func verifyServer(s *ServerSection) []error {
	var errs []error
	if err := verifyAddr("server.http.addr", s.HTTP.Addr); err != nil {
		errs = append(errs, err)
	}
	if s.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("server.http.rate_limit must not be negative"))
	}
	if s.HTTP.RateLimit > 0 && s.HTTP.RateBurst < 1 {
		errs = append(errs, errors.New("server.http.rate_burst must be at least 1 when rate limiting"))
	}
	if s.HTTP.MaxValueBytes <= 0 {
		errs = append(errs, errors.New("server.http.max_value_bytes must be positive"))
	}
	if s.HTTP.MaxKeyBytes <= 0 {
		errs = append(errs, errors.New("server.http.max_key_bytes must be positive"))
	}
	if s.Redis.Enabled {
		if err := verifyAddr("server.redis.addr", s.Redis.Addr); err != nil {
			errs = append(errs, err)
		}
		if s.Redis.Addr == s.HTTP.Addr {
			errs = append(errs, fmt.Errorf("server.redis.addr conflicts with server.http.addr (%s)", s.Redis.Addr))
		}
	}
	if n := len(s.Local.Socket); n > maxSocketPath {
		errs = append(errs, fmt.Errorf("server.local.socket is %d bytes, the limit is %d", n, maxSocketPath))
	}
	return errs
}

// maxSocketPath fits sockaddr_un on Linux and the BSDs.
const maxSocketPath = 103

func verifyAddr(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func verifyStorage(s *StorageSection) []error {
	var errs []error
	if s.ExpectedKeys <= 0 && s.Buckets <= 0 {
		errs = append(errs, errors.New("storage.expected_keys or storage.buckets must be positive"))
	}
	if s.ExpectedKeys < 0 || s.Buckets < 0 {
		errs = append(errs, errors.New("storage.expected_keys and storage.buckets must not be negative"))
	}
	if s.Buckets > lfmap.MaxBucketCount {
		errs = append(errs, fmt.Errorf("storage.buckets must be at most %d", lfmap.MaxBucketCount))
	}
	if s.Buckets <= 0 && s.ExpectedKeys > lfmap.MaxBucketCount/2 {
		errs = append(errs, fmt.Errorf("storage.expected_keys must be at most %d, or set storage.buckets", lfmap.MaxBucketCount/2))
	}
	if _, err := lfmap.ParseHash(s.Hash); err != nil {
		errs = append(errs, fmt.Errorf("storage.hash: %w", err))
	}
	switch strings.ToLower(s.Backend) {
	case storage.BackendJSON:
		if s.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the json backend"))
		}
	case storage.BackendSnapshot, storage.BackendBadger:
		if s.Dir == "" {
			errs = append(errs, fmt.Errorf("storage.dir is required for the %s backend", s.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", s.Backend))
	}
	if s.SaveInterval < 0 {
		errs = append(errs, errors.New("storage.save_interval must not be negative"))
	}
	if s.Snapshot.Keep < 1 {
		errs = append(errs, errors.New("storage.snapshot.keep must be at least 1"))
	}
	if _, err := snapshot.ParseCompression(s.Snapshot.Compression); err != nil {
		errs = append(errs, fmt.Errorf("storage.snapshot.compression: %w", err))
	}
	return errs
}

func verifyArena(a *ArenaSection) []error {
	var errs []error
	if _, err := arena.ParseStrategy(a.Strategy, a.ChunkSize); err != nil {
		errs = append(errs, fmt.Errorf("arena.strategy: %w", err))
	}
	if a.Slots < 0 {
		errs = append(errs, errors.New("arena.slots must not be negative"))
	}
	return errs
}

func verifySecurity(cfg *ServerConfig) []error {
	key := cfg.Security.EncryptionKey
	if key == "" {
		return nil
	}
	var errs []error
	if len(key) < adaptive.MinSecretLength {
		errs = append(errs, fmt.Errorf("security.encryption_key must be at least %d bytes", adaptive.MinSecretLength))
	}
	if !strings.EqualFold(cfg.Storage.Backend, storage.BackendSnapshot) {
		errs = append(errs, errors.New("security.encryption_key is only supported by the snapshot backend"))
	}
	return errs
}

func verifyLog(l *LogSection) []error {
	if _, err := logger.ParseLevel(l.Level); err != nil {
		return []error{fmt.Errorf("log.level: %w", err)}
	}
	switch strings.ToLower(l.Format) {
	case "", "json", "text", "console":
		return nil
	}
	return []error{fmt.Errorf("log.format: unknown format %q", l.Format)}
}
