package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/kvmesh-go/internal/storage/record"
	"github.com/yndnr/kvmesh-go/pkg/crypto/adaptive"
)

var magicBytes = []byte("KVMSNAP1")

const (
	filePrefix    = "snapshot-"
	fileExtension = ".snap"
	checksumSize  = 32
	headerVersion = 1

	DefaultRetentionCount = 3
	DefaultRetentionDays  = 7
)

type snapshotHeader struct {
	Version     int    `json:"version"`
	CreatedAt   int64  `json:"created_at"`
	RecordCount uint64 `json:"record_count"`
	Compression string `json:"compression"`
	Encrypted   bool   `json:"encrypted"`
	Cipher      string `json:"cipher,omitempty"`
}

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrNoSnapshots      = errors.New("snapshot: no snapshots available")
	ErrCipherRequired   = errors.New("snapshot: snapshot is encrypted but no key is configured")
)

// Config configures the snapshot manager.
type Config struct {
	Dir string

	// RetentionCount keeps the newest N snapshots.
	RetentionCount int
	// RetentionDays keeps snapshots younger than N days.
	RetentionDays int

	Compression string
	Cipher      *adaptive.Cipher
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
		RetentionDays:  DefaultRetentionDays,
		Compression:    CompressionNone,
	}
}

// Manager creates, loads and prunes snapshot files in one directory.
type Manager struct {
	cfg Config
}

// NewManager creates the snapshot directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	kind, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	cfg.Compression = kind

	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount == 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}

	return &Manager{cfg: cfg}, nil
}

// Info contains metadata about a snapshot.
type Info struct {
	ID          string `json:"id"`
	RecordCount int64  `json:"record_count"`
	CreatedAt   int64  `json:"created_at"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	Checksum    string `json:"checksum,omitempty"`
	Compression string `json:"compression,omitempty"`
	Encrypted   bool   `json:"encrypted"`
}

// Create writes a new snapshot holding records. The file is written to a
// temporary name, synced and renamed into place.
func (m *Manager) Create(records []record.Record) (*Info, error) {
	now := time.Now()
	id := filePrefix + ulid.Make().String()

	tempPath := filepath.Join(m.cfg.Dir, id+".tmp")
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hdr := snapshotHeader{
		Version:     headerVersion,
		CreatedAt:   now.UnixMilli(),
		RecordCount: uint64(len(records)),
		Compression: m.cfg.Compression,
		Encrypted:   m.cfg.Cipher != nil,
	}
	if m.cfg.Cipher != nil {
		hdr.Cipher = string(m.cfg.Cipher.Type())
	}

	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: marshal header: %w", err)
	}

	data, err := m.encodeData(records, hdrJSON)
	if err != nil {
		file.Close()
		return nil, err
	}

	hash := sha256.New()
	bw := bufio.NewWriter(io.MultiWriter(file, hash))

	var lenBuf [4]byte
	bw.Write(magicBytes)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrJSON)))
	bw.Write(lenBuf[:])
	bw.Write(hdrJSON)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	bw.Write(lenBuf[:])
	bw.Write(data)
	// bufio.Writer latches the first error; Flush reports it.
	if err := bw.Flush(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write: %w", err)
	}

	// Checksum trailer is not part of the hash.
	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(m.cfg.Dir, id+fileExtension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	return &Info{
		ID:          id,
		RecordCount: int64(len(records)),
		CreatedAt:   hdr.CreatedAt,
		Size:        stat.Size(),
		Path:        finalPath,
		Checksum:    hex.EncodeToString(sum),
		Compression: hdr.Compression,
		Encrypted:   hdr.Encrypted,
	}, nil
}

// encodeData marshals, compresses and seals records. The header bytes are
// bound to the ciphertext as additional data.
func (m *Manager) encodeData(records []record.Record, hdrJSON []byte) ([]byte, error) {
	if records == nil {
		records = []record.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal records: %w", err)
	}
	if data, err = compress(m.cfg.Compression, data); err != nil {
		return nil, err
	}
	if m.cfg.Cipher != nil {
		if data, err = m.cfg.Cipher.Encrypt(data, hdrJSON); err != nil {
			return nil, fmt.Errorf("snapshot: encrypt: %w", err)
		}
	}
	return data, nil
}

// Load reads the newest valid snapshot. Corrupted snapshots are skipped in
// favour of older ones. It returns ErrNoSnapshots when none exists.
func (m *Manager) Load() ([]record.Record, *Info, error) {
	snapshots, err := m.List()
	if err != nil {
		return nil, nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil, ErrNoSnapshots
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		records, info, err := m.loadFile(snapshots[i].Path)
		if err == nil {
			return records, info, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrInvalidMagic) {
			continue
		}
		return nil, nil, err
	}

	return nil, nil, ErrNoSnapshots
}

func (m *Manager) loadFile(path string) ([]record.Record, *Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if stat.Size() < int64(len(magicBytes))+checksumSize {
		return nil, nil, ErrChecksumMismatch
	}

	// Verify checksum.
	bodyLen := stat.Size() - checksumSize
	expected := make([]byte, checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(f, bodyLen, checksumSize), expected); err != nil {
		return nil, nil, err
	}
	h := sha256.New()
	if _, err := io.CopyN(h, io.NewSectionReader(f, 0, bodyLen), bodyLen); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, nil, ErrChecksumMismatch
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, bodyLen))

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return nil, nil, ErrInvalidMagic
	}

	hdrJSON, err := readBlock(br, bodyLen)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	var hdr snapshotHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal header: %w", err)
	}

	data, err := readBlock(br, bodyLen)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read data: %w", err)
	}

	if hdr.Encrypted {
		if m.cfg.Cipher == nil {
			return nil, nil, ErrCipherRequired
		}
		if data, err = m.cfg.Cipher.Decrypt(data, hdrJSON); err != nil {
			return nil, nil, fmt.Errorf("snapshot: decrypt: %w", err)
		}
	}
	if data, err = decompress(hdr.Compression, data); err != nil {
		return nil, nil, err
	}

	var records []record.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("snapshot: unmarshal records: %w", err)
	}

	info := &Info{
		ID:          strings.TrimSuffix(filepath.Base(path), fileExtension),
		RecordCount: int64(hdr.RecordCount),
		CreatedAt:   hdr.CreatedAt,
		Size:        stat.Size(),
		Path:        path,
		Checksum:    hex.EncodeToString(expected),
		Compression: hdr.Compression,
		Encrypted:   hdr.Encrypted,
	}
	return records, info, nil
}

// readBlock reads a 4-byte big-endian length followed by that many bytes.
func readBlock(r io.Reader, limit int64) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, fmt.Errorf("empty block")
	}
	if int64(n) > limit {
		return nil, fmt.Errorf("block length %d exceeds file size", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// List returns snapshot files oldest first (metadata from the file system
// only).
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExtension) {
			paths = append(paths, filepath.Join(m.cfg.Dir, name))
		}
	}
	sort.Strings(paths)

	var infos []*Info
	for _, p := range paths {
		stat, err := os.Stat(p)
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(filepath.Base(p), fileExtension)
		info := &Info{ID: id, Path: p, Size: stat.Size()}
		if u, err := ulid.ParseStrict(strings.TrimPrefix(id, filePrefix)); err == nil {
			info.CreatedAt = int64(u.Time())
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Prune deletes snapshots outside the retention policy. The newest
// snapshot is always kept.
func (m *Manager) Prune() error {
	infos, err := m.List()
	if err != nil {
		return err
	}
	if len(infos) <= 1 {
		return nil
	}

	keep := make(map[string]struct{}, len(infos))

	if m.cfg.RetentionCount > 0 {
		start := max(len(infos)-m.cfg.RetentionCount, 0)
		for _, info := range infos[start:] {
			keep[info.Path] = struct{}{}
		}
	}

	if m.cfg.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(m.cfg.RetentionDays) * 24 * time.Hour)
		for _, info := range infos {
			st, err := os.Stat(info.Path)
			if err != nil {
				continue
			}
			if st.ModTime().After(cutoff) {
				keep[info.Path] = struct{}{}
			}
		}
	}

	keep[infos[len(infos)-1].Path] = struct{}{}

	for _, info := range infos {
		if _, ok := keep[info.Path]; ok {
			continue
		}
		_ = os.Remove(info.Path)
	}
	return nil
}
