package redisserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

// errQuit ends the connection after the reply is flushed.
var errQuit = errors.New("quit")

// CommandHandler executes commands against the key-value service.
type CommandHandler struct {
	svc     *service.KVService
	logger  *slog.Logger
	metrics *metric.Registry
	started time.Time
}

// NewCommandHandler creates a handler. metrics may be nil.
func NewCommandHandler(svc *service.KVService, metrics *metric.Registry, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{
		svc:     svc,
		logger:  logger,
		metrics: metrics,
		started: time.Now(),
	}
}

type commandFunc func(h *CommandHandler, ctx context.Context, w *Writer, args [][]byte) error

// commands maps a command name to its implementation and arity. A positive
// arity is exact and a negative one is a minimum, counting the name.
var commands = map[string]struct {
	fn    commandFunc
	arity int
}{
	"PING":    {(*CommandHandler).ping, -1},
	"ECHO":    {(*CommandHandler).echo, 2},
	"GET":     {(*CommandHandler).get, 2},
	"SET":     {(*CommandHandler).set, 3},
	"MGET":    {(*CommandHandler).mget, -2},
	"EXISTS":  {(*CommandHandler).exists, -2},
	"DBSIZE":  {(*CommandHandler).dbsize, 1},
	"INFO":    {(*CommandHandler).info, -1},
	"COMMAND": {(*CommandHandler).command, -1},
	"QUIT":    {(*CommandHandler).quit, -1},
}

// Handle runs one command and writes its reply. It returns errQuit when the
// connection should be closed.
func (h *CommandHandler) Handle(ctx context.Context, w *Writer, args [][]byte) error {
	if len(args) == 0 {
		w.Error("ERR empty command")
		return nil
	}

	name := strings.ToUpper(string(args[0]))
	cmd, ok := commands[name]
	if !ok {
		h.observe("unknown", errUnknown)
		w.Error(fmt.Sprintf("ERR unknown command '%s', with args beginning with: %s", args[0], preview(args[1:])))
		return nil
	}
	if (cmd.arity > 0 && len(args) != cmd.arity) || (cmd.arity < 0 && len(args) < -cmd.arity) {
		h.observe(name, errArity)
		w.Error(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
		return nil
	}

	err := cmd.fn(h, ctx, w, args)
	if errors.Is(err, errQuit) {
		h.observe(name, nil)
		return err
	}
	if err != nil {
		h.logger.DebugContext(ctx, "command failed", "command", name, "error", err)
		w.Error(formatError(err))
	}
	h.observe(name, err)
	return nil
}

var (
	errUnknown = errors.New("unknown command")
	errArity   = errors.New("wrong number of arguments")
)

func (h *CommandHandler) observe(name string, err error) {
	if h.metrics != nil {
		h.metrics.ObserveCommand(name, err)
	}
}

// formatError renders domain errors as "ERR <code> <message>".
func formatError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return "ERR " + de.Code + " " + de.Message
	}
	return "ERR " + err.Error()
}

func preview(args [][]byte) string {
	var b strings.Builder
	for i, a := range args {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "'%.32s' ", a)
	}
	return b.String()
}

func (h *CommandHandler) ping(_ context.Context, w *Writer, args [][]byte) error {
	switch len(args) {
	case 1:
		w.Simple("PONG")
	case 2:
		w.Bulk(args[1])
	default:
		w.Error("ERR wrong number of arguments for 'ping' command")
	}
	return nil
}

func (h *CommandHandler) echo(_ context.Context, w *Writer, args [][]byte) error {
	w.Bulk(args[1])
	return nil
}

func (h *CommandHandler) get(ctx context.Context, w *Writer, args [][]byte) error {
	v, err := h.svc.Get(ctx, string(args[1]))
	if errors.Is(err, domain.ErrKeyNotFound) {
		w.Bulk(nil)
		return nil
	}
	if err != nil {
		return err
	}
	w.Bulk(v)
	return nil
}

func (h *CommandHandler) set(ctx context.Context, w *Writer, args [][]byte) error {
	if err := h.svc.Set(ctx, string(args[1]), args[2]); err != nil {
		return err
	}
	w.Simple("OK")
	return nil
}

func (h *CommandHandler) mget(ctx context.Context, w *Writer, args [][]byte) error {
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}
	values := h.svc.MGet(ctx, keys)
	w.Array(len(values))
	for _, v := range values {
		w.Bulk(v)
	}
	return nil
}

func (h *CommandHandler) exists(ctx context.Context, w *Writer, args [][]byte) error {
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}
	w.Int(int64(h.svc.Exists(ctx, keys...)))
	return nil
}

func (h *CommandHandler) dbsize(_ context.Context, w *Writer, _ [][]byte) error {
	w.Int(int64(h.svc.Len()))
	return nil
}

// info renders a subset of the Redis INFO sections.
func (h *CommandHandler) info(ctx context.Context, w *Writer, args [][]byte) error {
	section := "all"
	if len(args) > 1 {
		section = strings.ToLower(string(args[1]))
	}
	st := h.svc.Stats(ctx, false)
	build := buildinfo.Get()

	var b strings.Builder
	want := func(name string) bool {
		return section == "all" || section == "default" || section == "everything" || section == name
	}
	if want("server") {
		fmt.Fprintf(&b, "# Server\r\nkvmesh_version:%s\r\nkvmesh_git_sha1:%s\r\nos:%s\r\narch_bits:%d\r\nprocess_id:%d\r\nuptime_in_seconds:%d\r\n\r\n",
			build.Version, build.Commit, build.Platform, 32<<(^uint(0)>>63), os.Getpid(), int64(time.Since(h.started).Seconds()))
	}
	if want("memory") {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		fmt.Fprintf(&b, "# Memory\r\nused_memory:%d\r\nused_memory_rss:%d\r\narena_reserved_bytes:%d\r\narena_used_bytes:%d\r\n\r\n",
			ms.HeapAlloc, ms.Sys, st.Arena.BytesReserved, st.Arena.BytesUsed)
	}
	if want("stats") {
		fmt.Fprintf(&b, "# Stats\r\nkeyspace_hits:%d\r\nkeyspace_misses:%d\r\nbuckets:%d\r\nlock_free:%d\r\n\r\n",
			st.Reads.Success, st.Reads.Failure, st.Buckets, boolInt(st.LockFree))
	}
	if want("keyspace") {
		fmt.Fprintf(&b, "# Keyspace\r\ndb0:keys=%d,expires=0,avg_ttl=0\r\n", st.Keys)
	}
	w.Bulk([]byte(b.String()))
	return nil
}

// command answers client handshakes (COMMAND, COMMAND DOCS) with an empty
// array.
func (h *CommandHandler) command(_ context.Context, w *Writer, _ [][]byte) error {
	w.Array(0)
	return nil
}

func (h *CommandHandler) quit(_ context.Context, w *Writer, _ [][]byte) error {
	w.Simple("OK")
	return errQuit
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
