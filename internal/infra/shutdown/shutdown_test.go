package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

func TestHandler_ReverseOrder(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())

	var order []string
	for _, name := range []string{"store", "persister", "http"} {
		h.OnShutdown(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	h.Trigger()
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if got := strings.Join(order, ","); got != "http,persister,store" {
		t.Errorf("hook order = %s, want http,persister,store", got)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after Wait returned")
	}
}

func TestHandler_ErrorsJoined(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())
	errSave := errors.New("disk full")

	ran := false
	h.OnShutdown("close", func(context.Context) error {
		ran = true
		return nil
	})
	h.OnShutdown("save", func(context.Context) error { return errSave })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Wait(ctx)
	if !errors.Is(err, errSave) {
		t.Fatalf("Wait() error = %v, want %v", err, errSave)
	}
	if !ran {
		t.Error("hooks after a failure must still run")
	}
	if !strings.Contains(err.Error(), "save") {
		t.Errorf("error %q should name the hook", err)
	}
}

func TestHandler_HookDeadline(t *testing.T) {
	h := NewHandler(20*time.Millisecond, logger.Discard())
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger()
	h.Trigger()
	if err := h.Wait(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want deadline exceeded", err)
	}
}
