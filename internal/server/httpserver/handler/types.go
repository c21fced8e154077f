package handler

import (
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/storage/record"
)

// Response is the envelope of every JSON response.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response. An empty details string is
// omitted.
func NewErrorResponse(requestID, code, message, details string) *Response {
	resp := &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
	if details != "" {
		resp.Details = details
	}
	return resp
}

// SetResponse is returned by the write endpoints.
type SetResponse struct {
	Key  string `json:"key"`
	Size int    `json:"size"`
}

// ListResponse is the body of GET /kv.
type ListResponse struct {
	Items     []record.Record `json:"items"`
	Count     int             `json:"count"`
	Total     int             `json:"total"`
	Truncated bool            `json:"truncated"`
}

// SnapshotResponse is the body of POST /admin/v1/snapshot.
type SnapshotResponse struct {
	Records    int     `json:"records"`
	DurationMS float64 `json:"duration_ms"`
}

// StatusResponse is the body of GET /admin/v1/status.
type StatusResponse struct {
	Status     string         `json:"status"`
	Build      buildinfo.Info `json:"build"`
	StartedAt  time.Time      `json:"started_at"`
	Uptime     string         `json:"uptime"`
	Goroutines int            `json:"goroutines"`
	Memory     MemoryStats    `json:"memory"`
	Store      StoreSummary   `json:"store"`
}

// MemoryStats is a subset of runtime.MemStats.
type MemoryStats struct {
	HeapAlloc uint64 `json:"heap_alloc"`
	HeapInuse uint64 `json:"heap_inuse"`
	Sys       uint64 `json:"sys"`
	NumGC     uint32 `json:"num_gc"`
}

// StoreSummary is the store part of the status response.
type StoreSummary struct {
	Keys     int    `json:"keys"`
	Buckets  int    `json:"buckets"`
	LockFree bool   `json:"lock_free"`
	Reads    uint64 `json:"reads"`
}

func summarize(st service.Stats) StoreSummary {
	return StoreSummary{
		Keys:     st.Keys,
		Buckets:  st.Buckets,
		LockFree: st.LockFree,
		Reads:    st.Reads.Total(),
	}
}
