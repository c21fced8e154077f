package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
)

// DefaultTimeout bounds one request.
const DefaultTimeout = 30 * time.Second

// APIError is an error envelope returned by the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Details   string
	RequestID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Details   any             `json:"details"`
}

// HTTPClient talks to one kvmesh server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// unixScheme selects the local admin socket, as in unix:///run/kvmesh.sock.
const unixScheme = "unix://"

// NewHTTPClient creates a client for server, given as host:port, an HTTP
// URL or a unix:// socket path. timeout <= 0 selects DefaultTimeout.
func NewHTTPClient(server string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if socket, ok := strings.CutPrefix(server, unixScheme); ok {
		return &HTTPClient{
			baseURL: "http://kvmesh",
			client: &http.Client{
				Timeout:       timeout,
				CheckRedirect: noRedirect,
				Transport: &http.Transport{
					DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
						var d net.Dialer
						return d.DialContext(ctx, "unix", socket)
					},
				},
			},
		}
	}

	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout, CheckRedirect: noRedirect},
	}
}

// BaseURL returns the server URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// KeyPath returns the /kv path of key as one escaped segment. Slashes are
// escaped and a key of "." or ".." has its dots escaped, so path cleaning
// can never turn the key into a different one.
func KeyPath(key string) string {
	seg := url.PathEscape(key)
	if key == "." || key == ".." {
		seg = strings.ReplaceAll(seg, ".", "%2E")
	}
	return "/kv/" + seg
}

// noRedirect stops a redirect from being replayed as a bodiless GET.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Get decodes the data of GET path into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// GetRaw returns the body of GET path without unwrapping it.
func (c *HTTPClient) GetRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	if resp.StatusCode >= 300 {
		return nil, redirectError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Put sends body as the raw request body.
func (c *HTTPClient) Put(ctx context.Context, path string, body []byte, out any) error {
	req, err := c.newRequest(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return c.do(req, out)
}

// Post sends body encoded as JSON; a nil body sends no payload.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "kvmesh-cli/"+buildinfo.Version)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if resp.StatusCode >= 300 {
		return redirectError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

func redirectError(resp *http.Response) error {
	return &APIError{
		Status:  resp.StatusCode,
		Code:    strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"),
		Message: "unexpected redirect",
		Details: resp.Header.Get("Location"),
	}
}

func decodeError(resp *http.Response) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Code == "" {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"),
			Message: fmt.Sprintf("request failed with status %d", resp.StatusCode),
		}
	}
	apiErr := &APIError{
		Status:    resp.StatusCode,
		Code:      env.Code,
		Message:   env.Message,
		RequestID: env.RequestID,
	}
	if env.Details != nil {
		apiErr.Details = fmt.Sprint(env.Details)
	}
	return apiErr
}
