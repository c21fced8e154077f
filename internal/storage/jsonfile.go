package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yndnr/kvmesh-go/internal/storage/record"
)

const jsonDocumentVersion = 1

// JSONFileBackend stores the dataset as one JSON document:
//
//	{"version":1,"created_at":<unix ms>,"records":[{"key":..,"value":..},...],"count":N}
//
// Load streams the records array, so the document is never held in memory
// as a whole.
type JSONFileBackend struct {
	path string
}

// NewJSONFileBackend creates a backend writing to path.
func NewJSONFileBackend(path string) (*JSONFileBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonfile: path is required")
	}
	return &JSONFileBackend{path: path}, nil
}

// Name implements Backend.
func (b *JSONFileBackend) Name() string { return BackendJSON }

// Path returns the document path.
func (b *JSONFileBackend) Path() string { return b.path }

// Load implements Backend.
func (b *JSONFileBackend) Load(ctx context.Context, fn func(key string, value []byte) error) error {
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("jsonfile: open: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("jsonfile: read field: %w", err)
		}
		field, _ := tok.(string)

		switch field {
		case "version":
			var v int
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("jsonfile: version: %w", err)
			}
			if v != jsonDocumentVersion {
				return fmt.Errorf("jsonfile: unsupported version %d", v)
			}
		case "records":
			if err := b.loadRecords(ctx, dec, fn); err != nil {
				return err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("jsonfile: field %q: %w", field, err)
			}
		}
	}
	return expectDelim(dec, '}')
}

func (b *JSONFileBackend) loadRecords(ctx context.Context, dec *json.Decoder, fn func(string, []byte) error) error {
	if err := expectDelim(dec, '['); err != nil {
		return err
	}
	for i := 0; dec.More(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var r record.Record
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("jsonfile: record %d: %w", i, err)
		}
		key, value, err := r.Decode()
		if err != nil {
			return fmt.Errorf("jsonfile: record %d: %w", i, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return expectDelim(dec, ']')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("jsonfile: expected %q: %w", want, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("jsonfile: expected %q, got %v", want, tok)
	}
	return nil
}

// Save implements Backend. The document is written to a temporary file,
// synced and renamed over the previous one.
func (b *JSONFileBackend) Save(ctx context.Context, records iter.Seq2[string, []byte]) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("jsonfile: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeDocument(ctx, tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("jsonfile: rename: %w", err)
	}
	return nil
}

func writeDocument(ctx context.Context, w io.Writer, records iter.Seq2[string, []byte]) error {
	bw := bufio.NewWriterSize(w, 64<<10)

	bw.WriteString(`{"version":`)
	bw.WriteString(strconv.Itoa(jsonDocumentVersion))
	bw.WriteString(`,"created_at":`)
	bw.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	bw.WriteString(`,"records":[`)

	var (
		n      int
		encErr error
	)
	for key, value := range records {
		if n%4096 == 0 {
			if encErr = ctx.Err(); encErr != nil {
				break
			}
		}
		data, err := json.Marshal(record.New(key, value))
		if err != nil {
			encErr = fmt.Errorf("jsonfile: encode %q: %w", key, err)
			break
		}
		if n > 0 {
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
		bw.Write(data)
		n++
	}
	if encErr != nil {
		return encErr
	}

	bw.WriteString("\n],\"count\":")
	bw.WriteString(strconv.Itoa(n))
	bw.WriteString("}\n")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("jsonfile: write: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *JSONFileBackend) Close() error { return nil }
