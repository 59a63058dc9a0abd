package handlers

import (
	"net/http"
	"time"

	"github.com/duplifind/duplifind/internal/pipeline"
	"github.com/duplifind/duplifind/internal/scheduler"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	Manager *pipeline.Manager
	Sched   *scheduler.Scheduler
	Version string
}

type statusResponse struct {
	Version           string             `json:"version"`
	ActiveScan        *activeScanInfo    `json:"active_scan"`
	Schedule          scheduleInfo       `json:"schedule"`
	LastCompletedScan *completedScanInfo `json:"last_completed_scan"`
}

type activeScanInfo struct {
	StartedAt string           `json:"started_at"`
	Progress  scanProgressInfo `json:"progress"`
}

type scanProgressInfo struct {
	FilesDiscovered int64 `json:"files_discovered"`
	CandidatesFound int64 `json:"candidates_found"`
	QuickHashed     int64 `json:"quick_hashed"`
	FullHashed      int64 `json:"full_hashed"`
	BytesRead       int64 `json:"bytes_read"`
	CacheHits       int64 `json:"cache_hits"`
	CacheMisses     int64 `json:"cache_misses"`
	Warnings        int64 `json:"warnings"`
}

type scheduleInfo struct {
	Cron      string  `json:"cron"`
	NextRunAt *string `json:"next_run_at"`
}

type completedScanInfo struct {
	DuplicateGroups  int64   `json:"duplicate_groups"`
	DuplicateFiles   int64   `json:"duplicate_files"`
	ReclaimableBytes int64   `json:"reclaimable_bytes"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	Cancelled        bool    `json:"cancelled"`
}

// LastResulter is implemented by the api.State that outlives a single
// handler, kept as an interface here so handlers depends only on
// pipeline, not on the api package that owns it (which imports handlers).
type LastResulter interface {
	LastResult() *pipeline.Result
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request, state LastResulter) {
	resp := statusResponse{
		Version:           h.Version,
		ActiveScan:        h.activeScan(),
		Schedule:          h.schedule(),
		LastCompletedScan: lastCompletedScan(state),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) activeScan() *activeScanInfo {
	if h.Manager == nil {
		return nil
	}
	handle := h.Manager.Active()
	if handle == nil {
		return nil
	}
	snap := handle.Progress()
	return &activeScanInfo{
		StartedAt: handle.StartedAt.UTC().Format(time.RFC3339),
		Progress: scanProgressInfo{
			FilesDiscovered: snap.FilesDiscovered,
			CandidatesFound: snap.CandidatesFound,
			QuickHashed:     snap.QuickHashed,
			FullHashed:      snap.FullHashed,
			BytesRead:       snap.BytesRead,
			CacheHits:       snap.CacheHits,
			CacheMisses:     snap.CacheMisses,
			Warnings:        snap.Warnings,
		},
	}
}

func (h *StatusHandler) schedule() scheduleInfo {
	info := scheduleInfo{Cron: "0 2 * * 0"}
	if h.Sched != nil {
		info.Cron = h.Sched.CronExpr()
		if t := h.Sched.NextRunAt(); t != nil {
			s := t.UTC().Format(time.RFC3339)
			info.NextRunAt = &s
		}
	}
	return info
}

func lastCompletedScan(state LastResulter) *completedScanInfo {
	if state == nil {
		return nil
	}
	r := state.LastResult()
	if r == nil {
		return nil
	}
	var hitRate float64
	if total := r.Progress.CacheHits + r.Progress.CacheMisses; total > 0 {
		hitRate = float64(r.Progress.CacheHits) / float64(total)
	}
	return &completedScanInfo{
		DuplicateGroups:  int64(r.Stats.GroupCount),
		DuplicateFiles:   int64(r.Stats.TotalDuplicateFiles),
		ReclaimableBytes: r.Stats.TotalWastedBytes,
		CacheHits:        r.Progress.CacheHits,
		CacheMisses:      r.Progress.CacheMisses,
		CacheHitRate:     hitRate,
		Cancelled:        r.Cancelled,
	}
}
