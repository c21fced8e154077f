package redisserver

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

func startServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	h, reg := newTestHandler(t)
	s := New(cfg, h, reg, logger.Discard())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background(), ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := <-errCh; err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	})
	return s, ln.Addr().String()
}

type client struct {
	conn net.Conn
	br   *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))
	return &client{conn: c, br: bufio.NewReader(c)}
}

func (c *client) send(t *testing.T, raw string) {
	t.Helper()
	if _, err := io.WriteString(c.conn, raw); err != nil {
		t.Fatal(err)
	}
}

func (c *client) line(t *testing.T) string {
	t.Helper()
	s, err := c.br.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return strings.TrimSuffix(s, "\r\n")
}

func TestServer_SetGetPipeline(t *testing.T) {
	_, addr := startServer(t, Config{})
	c := dial(t, addr)

	// Pipelined: both commands in one write.
	c.send(t, "*3\r\n$3\r\nSET\r\n$4\r\nname\r\n$5\r\nkvmsh\r\n*2\r\n$3\r\nGET\r\n$4\r\nname\r\n")
	if got := c.line(t); got != "+OK" {
		t.Fatalf("SET reply = %q", got)
	}
	if got := c.line(t); got != "$5" {
		t.Fatalf("GET header = %q", got)
	}
	if got := c.line(t); got != "kvmsh" {
		t.Fatalf("GET payload = %q", got)
	}

	c.send(t, "PING\r\n")
	if got := c.line(t); got != "+PONG" {
		t.Errorf("inline PING = %q", got)
	}
}

func TestServer_Quit(t *testing.T) {
	_, addr := startServer(t, Config{})
	c := dial(t, addr)

	c.send(t, "*1\r\n$4\r\nQUIT\r\n")
	if got := c.line(t); got != "+OK" {
		t.Fatalf("QUIT reply = %q", got)
	}
	if _, err := c.br.ReadByte(); err != io.EOF {
		t.Errorf("connection still open after QUIT: %v", err)
	}
}

func TestServer_ProtocolErrorCloses(t *testing.T) {
	_, addr := startServer(t, Config{MaxBulkLen: 4})
	c := dial(t, addr)

	c.send(t, "*2\r\n$3\r\nGET\r\n$10\r\n")
	if got := c.line(t); !strings.HasPrefix(got, "-ERR resp: limit exceeded") {
		t.Fatalf("reply = %q", got)
	}
	if _, err := c.br.ReadByte(); err != io.EOF {
		t.Errorf("connection still open after protocol error: %v", err)
	}
}

func TestServer_RateLimit(t *testing.T) {
	_, addr := startServer(t, Config{RateLimit: 0.001, RateBurst: 1})
	c := dial(t, addr)

	c.send(t, "PING\r\nPING\r\n")
	if got := c.line(t); got != "+PONG" {
		t.Fatalf("first PING = %q", got)
	}
	if got := c.line(t); !strings.HasPrefix(got, "-ERR KV-SYS-4290") {
		t.Errorf("second PING = %q, want rate limit error", got)
	}
}

func TestServer_MaxConnections(t *testing.T) {
	_, addr := startServer(t, Config{MaxConnections: 1})

	first := dial(t, addr)
	first.send(t, "PING\r\n")
	if got := first.line(t); got != "+PONG" {
		t.Fatalf("first client PING = %q", got)
	}

	second := dial(t, addr)
	if got := second.line(t); got != "-ERR max number of clients reached" {
		t.Errorf("second client = %q", got)
	}
}

func TestServer_ShutdownIdleClients(t *testing.T) {
	s, addr := startServer(t, Config{})
	c := dial(t, addr)
	c.send(t, "PING\r\n")
	c.line(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := c.br.ReadByte(); err == nil {
		t.Error("idle client should be disconnected on shutdown")
	}
}

func TestServer_NoAdmissionAfterShutdown(t *testing.T) {
	h, reg := newTestHandler(t)
	s := New(Config{}, h, reg, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()
	if s.admit(server) {
		t.Fatal("a connection accepted after Shutdown must not be admitted")
	}
	if n := len(s.conns); n != 0 {
		t.Errorf("tracked connections = %d, want 0", n)
	}
	// Nothing was added to the wait group, so a second Shutdown returns at once.
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background(), ln) }()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() after Shutdown error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() after Shutdown should return immediately")
	}
	if _, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second); err == nil {
		t.Error("listener should be closed")
	}
}
