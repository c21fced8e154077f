package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yndnr/kvmesh-go/internal/cli/connection"
	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/kvmesh-go/internal/storage/record"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

type testEnv struct {
	url    string
	config string
	stdin  io.Reader
}

// newTestEnv serves the real HTTP handler over an empty store.
func newTestEnv(t *testing.T, svcOpts []service.Option, hOpts ...handler.Option) *testEnv {
	t.Helper()
	store := lfmap.New(64)
	t.Cleanup(store.Close)
	svc := service.NewKVService(store, append([]service.Option{service.WithLogger(logger.Discard())}, svcOpts...)...)
	srv := httptest.NewServer(handler.New(svc, logger.Discard(), hOpts...))
	t.Cleanup(srv.Close)
	return &testEnv{
		url:    srv.URL,
		config: filepath.Join(t.TempDir(), "cli.yaml"),
	}
}

// run executes the CLI with global flags pointing at the test server.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runRaw(t, append([]string{"--server", e.url}, args...)...)
}

func (e *testEnv) runRaw(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = io.Discard
	if e.stdin != nil {
		app.Reader = e.stdin
	}
	full := append([]string{"kvmesh-cli", "--config", e.config}, args...)
	err := app.RunContext(context.Background(), full)
	return out.String(), err
}

func apiCode(err error) string {
	var apiErr *connection.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func TestApp_Commands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range App().Commands {
		names[c.Name] = true
	}
	for _, want := range []string{"get", "set", "list", "stats", "system", "config"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestSetThenGet(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run(t, "set", "greeting", "hello")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out, "greeting") || !strings.Contains(out, "5 B") {
		t.Errorf("set output = %q", out)
	}

	out, err = env.run(t, "get", "greeting")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("get output = %q", out)
	}

	out, err = env.run(t, "-o", "json", "get", "greeting")
	if err != nil {
		t.Fatalf("get -o json: %v", err)
	}
	var rec record.Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if rec.Key != "greeting" || rec.Value != "hello" {
		t.Errorf("record = %+v", rec)
	}
}

func TestSetFromStdinGetRaw(t *testing.T) {
	env := newTestEnv(t, nil)
	value := []byte{0x00, 0x01, 0xff}
	env.stdin = bytes.NewReader(value)

	if _, err := env.run(t, "set", "--file", "-", "dir/blob"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err := env.run(t, "get", "--raw", "dir/blob")
	if err != nil {
		t.Fatalf("get --raw: %v", err)
	}
	if out != string(value) {
		t.Errorf("raw value = %q, want %q", out, value)
	}

	out, err = env.run(t, "get", "dir/blob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, `"\x00\x01\xff"`) {
		t.Errorf("binary value not quoted: %q", out)
	}
}

func TestSetThenGet_KeysWithPathSegments(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.run(t, "set", "a/b", "other"); err != nil {
		t.Fatalf("set a/b: %v", err)
	}

	for _, key := range []string{"a//b", "x/../a/b", "dir/./f", ".", "..", "a/b/"} {
		out, err := env.run(t, "-o", "json", "set", key, "v:"+key)
		if err != nil {
			t.Fatalf("set %q: %v", key, err)
		}
		if !strings.Contains(out, strconv.Quote(key)) {
			t.Errorf("set %q reported %s", key, out)
		}

		out, err = env.run(t, "get", "--raw", key)
		if err != nil {
			t.Fatalf("get %q: %v", key, err)
		}
		if out != "v:"+key {
			t.Errorf("get %q = %q", key, out)
		}
	}

	out, err := env.run(t, "get", "--raw", "a/b")
	if err != nil || out != "other" {
		t.Errorf("a/b = %q, %v; want it untouched", out, err)
	}
}

func TestSet_Usage(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.run(t, "set"); err == nil {
		t.Error("set without key should fail")
	}
	if _, err := env.run(t, "set", "k"); err == nil {
		t.Error("set without value should fail")
	}
	if _, err := env.run(t, "set", "--file", "x", "k", "v"); err == nil {
		t.Error("set with both value and file should fail")
	}
}

func TestGet_Missing(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.run(t, "get", "absent")
	if code := apiCode(err); code != "KV-NOTFOUND-4040" {
		t.Errorf("error = %v, want KV-NOTFOUND-4040", err)
	}
}

func TestSet_ValueTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	big := strings.Repeat("x", 1<<20+1)
	_, err := env.run(t, "set", "big", big)
	if code := apiCode(err); code != "KV-ARG-4002" {
		t.Errorf("error = %v, want KV-ARG-4002", err)
	}
}

func TestList(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, k := range []string{"a", "b", "c"} {
		if _, err := env.run(t, "set", k, "v-"+k); err != nil {
			t.Fatal(err)
		}
	}

	out, err := env.run(t, "list", "--limit", "1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "(1 of 3 keys shown)") {
		t.Errorf("list output = %q", out)
	}

	out, err = env.run(t, "-o", "yaml", "list")
	if err != nil {
		t.Fatalf("list -o yaml: %v", err)
	}
	for _, want := range []string{"count: 3", "total: 3", "truncated: false", "value: v-b"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.run(t, "set", "k", "v"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.run(t, "get", "k"); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"lock_free", "hit_ratio", "max_chain", "arena_used"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "-o", "json", "stats", "--chains=false")
	if err != nil {
		t.Fatalf("stats -o json: %v", err)
	}
	var st service.Stats
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Keys != 1 || st.Reads.Success != 1 || st.Chains != nil {
		t.Errorf("stats = %+v", st)
	}
}

func TestSystemStatusAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := env.run(t, "system", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "running") || !strings.Contains(out, "goroutines") {
		t.Errorf("status output = %q", out)
	}

	out, err = env.run(t, "sys", "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "healthy") {
		t.Errorf("health output = %q", out)
	}
}

func TestSystemReady_NotReady(t *testing.T) {
	env := newTestEnv(t, nil, handler.WithReady(func() bool { return false }))

	out, err := env.run(t, "system", "ready")
	if code := apiCode(err); code != "KV-SYS-5030" {
		t.Errorf("error = %v, want KV-SYS-5030", err)
	}
	if !strings.Contains(out, "unavailable") {
		t.Errorf("ready output = %q", out)
	}
}

func TestSystemSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.run(t, "system", "snapshot"); apiCode(err) != "KV-SYS-5030" {
		t.Errorf("snapshot without persistence: error = %v", err)
	}

	var calls atomic.Int32
	env = newTestEnv(t, []service.Option{service.WithSnapshot(func(context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	})})
	out, err := env.run(t, "-o", "json", "system", "snapshot")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var res handler.SnapshotResponse
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Records != 42 || calls.Load() != 1 {
		t.Errorf("snapshot = %+v, calls = %d", res, calls.Load())
	}
}

func TestConfigSetAndPrecedence(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.runRaw(t, "config", "set", "server", "127.0.0.1:1"); err != nil {
		t.Fatalf("config set server: %v", err)
	}
	if _, err := env.runRaw(t, "config", "set", "output", "yaml"); err != nil {
		t.Fatalf("config set output: %v", err)
	}
	if _, err := env.runRaw(t, "config", "set", "output", "xml"); err == nil {
		t.Error("invalid output format accepted")
	}
	if _, err := env.runRaw(t, "config", "set", "colour", "red"); err == nil {
		t.Error("unknown preference accepted")
	}

	out, err := env.runRaw(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "127.0.0.1:1") || !strings.Contains(out, "output: yaml") {
		t.Errorf("config show = %q", out)
	}

	// The environment wins over the preferences file.
	t.Setenv("KVMESH_SERVER", env.url)
	out, err = env.runRaw(t, "system", "health")
	if err != nil {
		t.Fatalf("health via env: %v", err)
	}
	if !strings.Contains(out, "status: healthy") {
		t.Errorf("health output = %q", out)
	}
}

func TestInvalidOutputFlag(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.run(t, "-o", "xml", "stats"); err == nil {
		t.Error("invalid --output accepted")
	}
}
