package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/duplifind/duplifind/internal/cache"
	"github.com/duplifind/duplifind/internal/pipeline"
)

// ScansHandler handles the scan lifecycle endpoints: there is no scan
// history table to back a List/Get pair against, only the single active
// scan pipeline.Manager tracks and the one completed Result the server
// keeps in memory (surfaced via /api/status instead).
type ScansHandler struct {
	Manager *pipeline.Manager
	Cache   *cache.Cache
	ScanCfg pipeline.Config
	// OnStarted is invoked with the new handle right after Start succeeds,
	// so the caller can wait for completion and record the Result without
	// this handler depending on that state.
	OnStarted func(*pipeline.ScanHandle)
}

// Create handles POST /api/scans — triggers a scan of the configured
// roots.
func (h *ScansHandler) Create(w http.ResponseWriter, r *http.Request) {
	handle, err := h.Manager.Start(context.Background(), h.ScanCfg, h.Cache, nil)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "SCAN_ALREADY_RUNNING", "a scan is already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if h.OnStarted != nil {
		h.OnStarted(handle)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "running",
		"started_at": handle.StartedAt.UTC().Format(time.RFC3339),
	})
}

// Cancel handles DELETE /api/scans/current.
func (h *ScansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Cancel(); err != nil {
		if errors.Is(err, pipeline.ErrNoActiveScan) {
			writeError(w, http.StatusNotFound, "NO_ACTIVE_SCAN", "no scan is currently running")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "cancelling"})
}

// parsePagination extracts limit and offset from query parameters.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return
}
