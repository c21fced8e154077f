package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/storage/record"
)

// handleGet handles GET /kv/{key}.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, err := h.svc.Get(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(value)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(value)
		return
	}
	h.writeJSON(w, r, http.StatusOK, record.New(key, value))
}

// handlePut handles PUT and POST /kv/{key}. The body is the value.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	limit := int64(h.svc.Limits().MaxValueBytes)

	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.writeError(w, r, domain.ErrValueTooLarge.WithDetails(strconv.FormatInt(limit, 10)+" bytes max"))
			return
		}
		h.writeError(w, r, domain.ErrInvalidInput.WithCause(err))
		return
	}

	if err := h.svc.Set(r.Context(), key, value); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, SetResponse{Key: key, Size: len(value)})
}

// handleSetJSON handles POST /kv with a JSON record body.
func (h *Handler) handleSetJSON(w http.ResponseWriter, r *http.Request) {
	lim := h.svc.Limits()
	// base64 inflates by 4/3; leave room for the envelope.
	maxBody := int64(2*(lim.MaxKeyBytes+lim.MaxValueBytes) + 1024)

	var rec record.Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.writeError(w, r, domain.ErrValueTooLarge)
			return
		}
		h.writeError(w, r, domain.ErrInvalidInput.WithDetails("invalid request body"))
		return
	}

	key, value, err := rec.Decode()
	if err != nil {
		h.writeError(w, r, domain.ErrInvalidInput.WithDetails(err.Error()))
		return
	}
	if err := h.svc.Set(r.Context(), key, value); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, SetResponse{Key: key, Size: len(value)})
}

// handleList handles GET /kv.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.writeError(w, r, domain.ErrInvalidInput.WithDetails("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, truncated := h.svc.List(r.Context(), limit)
	items := make([]record.Record, len(entries))
	for i, e := range entries {
		items[i] = record.New(e.Key, []byte(e.Value))
	}
	h.writeJSON(w, r, http.StatusOK, ListResponse{
		Items:     items,
		Count:     len(items),
		Total:     h.svc.Len(),
		Truncated: truncated,
	})
}

// handleStats handles GET /stats. ?chains=0 skips the bucket walk.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	chains := true
	if s := r.URL.Query().Get("chains"); s != "" {
		chains, _ = strconv.ParseBool(s)
	}
	h.writeJSON(w, r, http.StatusOK, h.svc.Stats(r.Context(), chains))
}
