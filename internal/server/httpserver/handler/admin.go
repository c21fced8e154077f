package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
)

// handleAdminStatus handles GET /admin/v1/status.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h.writeJSON(w, r, http.StatusOK, StatusResponse{
		Status:     "running",
		Build:      buildinfo.Get(),
		StartedAt:  h.started.UTC(),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			HeapAlloc: ms.HeapAlloc,
			HeapInuse: ms.HeapInuse,
			Sys:       ms.Sys,
			NumGC:     ms.NumGC,
		},
		Store: summarize(h.svc.Stats(r.Context(), false)),
	})
}

// handleSnapshot handles POST /admin/v1/snapshot. The store keeps serving
// while the dataset is written.
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, SnapshotResponse{
		Records:    res.Records,
		DurationMS: float64(res.Duration.Microseconds()) / 1000,
	})
}
