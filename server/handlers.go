package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"kvlog"
	"kvlog/store"
)

// maxValueBody bounds PUT request bodies; the engine enforces its own
// record limits, this only protects the server from unbounded reads.
const maxValueBody = 1 << 30

type handlers struct {
	store     kvlog.Store
	threshold float64
	logger    *slog.Logger
}

type errorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type keysResponse struct {
	Keys []string `json:"keys"`
}

type statsResponse struct {
	kvlog.Stats
	DeadRatio       float64 `json:"dead_ratio"`
	NeedsCompaction bool    `json:"needs_compaction"`
}

type compactResponse struct {
	Before statsResponse `json:"before"`
	After  statsResponse `json:"after"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listKeys(w http.ResponseWriter, _ *http.Request) {
	keys := h.store.ListKeys()
	resp := keysResponse{Keys: make([]string, 0, len(keys))}
	for _, key := range keys {
		resp.Keys = append(resp.Keys, string(key))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getKey(w http.ResponseWriter, r *http.Request) {
	value, err := h.store.Get([]byte(r.PathValue("key")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

func (h *handlers) putKey(w http.ResponseWriter, r *http.Request) {
	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Error: err.Error()})
		return
	}
	if err := h.store.Set([]byte(r.PathValue("key")), value); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteKey(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete([]byte(r.PathValue("key"))); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.statsView())
}

func (h *handlers) compact(w http.ResponseWriter, _ *http.Request) {
	before := h.statsView()
	if err := h.store.Compact(); err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("compaction finished",
		"disk_bytes_before", before.DiskBytes,
		"disk_bytes_after", h.store.Stats().DiskBytes,
	)
	writeJSON(w, http.StatusOK, compactResponse{Before: before, After: h.statsView()})
}

func (h *handlers) statsView() statsResponse {
	stats := h.store.Stats()
	return statsResponse{
		Stats:           stats,
		DeadRatio:       stats.DeadRatio(),
		NeedsCompaction: h.threshold > 0 && stats.DeadRatio() >= h.threshold,
	}
}

// writeError renders the engine's error taxonomy distinctly: a miss is not
// a corruption, and a corruption is not a generic I/O failure.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	var corrupt *store.CorruptRecordError
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Kind: "not_found", Error: "key not found"})
	case errors.Is(err, store.ErrInvalidKey), errors.Is(err, store.ErrValueTooLarge):
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: "invalid_request", Error: err.Error()})
	case errors.As(err, &corrupt):
		h.logger.Error("corrupt record", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "corrupt_record", Error: err.Error()})
	default:
		h.logger.Error("store operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "io_error", Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
