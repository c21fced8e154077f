package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeEnvelope(w http.ResponseWriter, status int, env map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func TestNewHTTPClient_BaseURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"localhost:8000", "http://localhost:8000"},
		{"http://localhost:8000/", "http://localhost:8000"},
		{"https://kv.example.com", "https://kv.example.com"},
	}
	for _, tt := range tests {
		if got := NewHTTPClient(tt.server, 0).BaseURL(); got != tt.want {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestKeyPath(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"user", "/kv/user"},
		{"user:1", "/kv/user:1"},
		{"a/b", "/kv/a%2Fb"},
		{"a//b", "/kv/a%2F%2Fb"},
		{"dir/./f", "/kv/dir%2F.%2Ff"},
		{"x/../a", "/kv/x%2F..%2Fa"},
		{".", "/kv/%2E"},
		{"..", "/kv/%2E%2E"},
		{"with space", "/kv/with%20space"},
		{"q?x", "/kv/q%3Fx"},
	}
	for _, tt := range tests {
		if got := KeyPath(tt.key); got != tt.want {
			t.Errorf("KeyPath(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestHTTPClient_GetUnwrapsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.UserAgent(), "kvmesh-cli/") {
			t.Errorf("User-Agent = %q", r.UserAgent())
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"code": "OK",
			"data": map[string]any{"key": "k", "value": "v"},
		})
	}))
	defer srv.Close()

	var out struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := NewHTTPClient(srv.URL, 0).Get(context.Background(), "/kv/k", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.Key != "k" || out.Value != "v" {
		t.Errorf("Get() = %+v", out)
	}
}

func TestHTTPClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, map[string]any{
			"code":       "KV-NOTFOUND-4040",
			"message":    "key not found",
			"details":    "missing",
			"request_id": "01J0000000000000000000000",
		})
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, 0).Get(context.Background(), "/kv/missing", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "KV-NOTFOUND-4040" || apiErr.Details != "missing" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if got := apiErr.Error(); got != "[KV-NOTFOUND-4040] key not found: missing" {
		t.Errorf("Error() = %q", got)
	}
}

func TestHTTPClient_ErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, 0).GetRaw(context.Background(), "/kv/x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("error = %v", err)
	}
}

func TestHTTPClient_PutSendsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		writeEnvelope(w, http.StatusOK, map[string]any{
			"code": "OK",
			"data": map[string]any{"key": strings.TrimPrefix(r.URL.Path, "/kv/"), "size": len(body)},
		})
	}))
	defer srv.Close()

	var out struct {
		Key  string `json:"key"`
		Size int    `json:"size"`
	}
	err := NewHTTPClient(srv.URL, 0).Put(context.Background(), KeyPath("greeting"), []byte("hello"), &out)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if out.Key != "greeting" || out.Size != 5 {
		t.Errorf("Put() = %+v", out)
	}
}

func TestHTTPClient_GetRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("raw") != "1" {
			t.Errorf("raw query missing: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte{0x00, 0xff})
	}))
	defer srv.Close()

	got, err := NewHTTPClient(srv.URL, 0).GetRaw(context.Background(), "/kv/bin?raw=1")
	if err != nil {
		t.Fatalf("GetRaw() error = %v", err)
	}
	if string(got) != "\x00\xff" {
		t.Errorf("GetRaw() = %q", got)
	}
}

func TestHTTPClient_UnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "kvcli")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "kv.sock")

	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{
			"code": "OK",
			"data": map[string]any{"path": r.URL.Path},
		})
	})}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	c := NewHTTPClient("unix://"+path, 0)
	if c.BaseURL() != "http://kvmesh" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	var out struct {
		Path string `json:"path"`
	}
	if err := c.Get(context.Background(), "/status", &out); err != nil {
		t.Fatalf("Get() over socket: %v", err)
	}
	if out.Path != "/status" {
		t.Errorf("path = %q", out.Path)
	}
}

func TestHTTPClient_DoesNotFollowRedirects(t *testing.T) {
	var gets int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets++
		}
		http.Redirect(w, r, "/kv/elsewhere", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, 0).Put(context.Background(), "/kv/a//b", []byte("v"), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusMovedPermanently {
		t.Fatalf("Put() error = %v, want a 301 APIError", err)
	}
	if apiErr.Details != "/kv/elsewhere" {
		t.Errorf("Details = %q, want the Location header", apiErr.Details)
	}
	if gets != 0 {
		t.Errorf("redirect was replayed as %d GET request(s)", gets)
	}
}
