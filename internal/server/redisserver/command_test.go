package redisserver

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
	"github.com/yndnr/kvmesh-go/pkg/lfmap"
)

func newTestHandler(t *testing.T, opts ...service.Option) (*CommandHandler, *metric.Registry) {
	t.Helper()
	store := lfmap.New(128)
	t.Cleanup(store.Close)
	reg := metric.NewRegistry()
	svc := service.NewKVService(store, append([]service.Option{service.WithLogger(logger.Discard())}, opts...)...)
	return NewCommandHandler(svc, reg, logger.Discard()), reg
}

// run executes one command and returns the raw reply.
func run(t *testing.T, h *CommandHandler, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	err := h.Handle(context.Background(), w, raw)
	if ferr := w.Flush(); ferr != nil {
		t.Fatal(ferr)
	}
	return buf.String(), err
}

func TestCommands(t *testing.T) {
	h, _ := newTestHandler(t)

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"PING"}, "+PONG\r\n"},
		{[]string{"ping", "hi"}, "$2\r\nhi\r\n"},
		{[]string{"ECHO", "x y"}, "$3\r\nx y\r\n"},
		{[]string{"GET", "k"}, "$-1\r\n"},
		{[]string{"SET", "k", "v1"}, "+OK\r\n"},
		{[]string{"SET", "k", "v2"}, "+OK\r\n"},
		{[]string{"GET", "k"}, "$2\r\nv2\r\n"},
		{[]string{"SET", "e", ""}, "+OK\r\n"},
		{[]string{"GET", "e"}, "$0\r\n\r\n"},
		{[]string{"MGET", "k", "missing", "e"}, "*3\r\n$2\r\nv2\r\n$-1\r\n$0\r\n\r\n"},
		{[]string{"EXISTS", "k", "k", "missing"}, ":2\r\n"},
		{[]string{"DBSIZE"}, ":2\r\n"},
		{[]string{"COMMAND", "DOCS"}, "*0\r\n"},
	}
	for _, s := range steps {
		got, err := run(t, h, s.args...)
		if err != nil {
			t.Fatalf("%v: error = %v", s.args, err)
		}
		if got != s.want {
			t.Errorf("%v = %q, want %q", s.args, got, s.want)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	h, reg := newTestHandler(t, service.WithLimits(domain.Limits{MaxKeyBytes: 8, MaxValueBytes: 4}))

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"FLUSHALL"}, "-ERR unknown command 'FLUSHALL'"},
		{[]string{"GET"}, "-ERR wrong number of arguments for 'get' command"},
		{[]string{"SET", "k"}, "-ERR wrong number of arguments for 'set' command"},
		{[]string{"SET", "k", "v", "EX", "10"}, "-ERR wrong number of arguments for 'set' command"},
		{[]string{"PING", "a", "b"}, "-ERR wrong number of arguments for 'ping' command"},
		{[]string{"SET", "", "v"}, "-ERR KV-ARG-4001 "},
		{[]string{"SET", "k", "too-long"}, "-ERR KV-ARG-4002 "},
		{[]string{"GET", "a-very-long-key"}, "-ERR KV-ARG-4003 "},
	}
	for _, tt := range tests {
		got, err := run(t, h, tt.args...)
		if err != nil {
			t.Fatalf("%v: error = %v", tt.args, err)
		}
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("%v = %q, want prefix %q", tt.args, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(reg.CommandsTotal.WithLabelValues("unknown", "error")); got != 1 {
		t.Errorf("unknown command counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.CommandsTotal.WithLabelValues("SET", "error")); got != 4 {
		t.Errorf("SET error counter = %v, want 4", got)
	}
}

func TestInfo(t *testing.T) {
	h, _ := newTestHandler(t)
	_, _ = run(t, h, "SET", "a", "1")
	_, _ = run(t, h, "GET", "a")
	_, _ = run(t, h, "GET", "b")

	got, _ := run(t, h, "INFO")
	for _, want := range []string{"# Server", "kvmesh_version:", "keyspace_hits:1", "keyspace_misses:1", "db0:keys=1"} {
		if !strings.Contains(got, want) {
			t.Errorf("INFO missing %q:\n%s", want, got)
		}
	}

	got, _ = run(t, h, "INFO", "keyspace")
	if strings.Contains(got, "# Server") || !strings.Contains(got, "# Keyspace") {
		t.Errorf("INFO keyspace = %q", got)
	}
}

func TestQuit(t *testing.T) {
	h, _ := newTestHandler(t)
	got, err := run(t, h, "QUIT")
	if !errors.Is(err, errQuit) {
		t.Errorf("QUIT error = %v, want errQuit", err)
	}
	if got != "+OK\r\n" {
		t.Errorf("QUIT reply = %q", got)
	}
}
