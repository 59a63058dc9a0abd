package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/duplifind/duplifind/internal/cache"
)

// ErrAlreadyRunning is returned by Manager.Start when a scan is already
// in progress.
var ErrAlreadyRunning = errors.New("a scan is already in progress")

// ErrNoActiveScan is returned by Manager.Cancel when no scan is running.
var ErrNoActiveScan = errors.New("no scan is currently running")

// ScanHandle is a live or finished asynchronous scan.
type ScanHandle struct {
	StartedAt time.Time

	progress *Progress
	cancel   context.CancelFunc
	done     chan struct{}
	result   *Result
	err      error
}

// Progress returns a point-in-time snapshot of the scan's counters.
func (h *ScanHandle) Progress() Snapshot {
	return h.progress.snapshot()
}

// Cancel requests that the scan stop. It does not block until the scan
// actually exits; call Result to wait for that.
func (h *ScanHandle) Cancel() {
	h.cancel()
}

// Result blocks until the scan finishes, then returns its Result. It may
// be called more than once; subsequent calls return the same values.
func (h *ScanHandle) Result() (*Result, error) {
	<-h.done
	return h.result, h.err
}

// Manager enforces a single-active-scan invariant and exposes
// start/cancel/inspect. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	active *ScanHandle
}

// NewManager returns an idle Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Start launches an asynchronous scan under parentCtx. Cancelling
// parentCtx (e.g. on server shutdown) cancels the scan along with it.
// Returns ErrAlreadyRunning if a scan is already in progress.
func (m *Manager) Start(parentCtx context.Context, cfg Config, c *cache.Cache, sink ProgressSink) (*ScanHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyRunning
	}

	scanCtx, cancel := context.WithCancel(parentCtx)
	handle := &ScanHandle{
		StartedAt: time.Now(),
		progress:  &Progress{},
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.active = handle

	go func() {
		result, err := Scan(scanCtx, cfg, c, handle.progress, sink)
		handle.result = result
		handle.err = err
		close(handle.done)

		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
	}()

	return handle, nil
}

// Cancel stops the currently running scan, if any.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveScan
	}
	m.active.Cancel()
	return nil
}

// Active returns the currently running scan's handle, or nil if idle.
func (m *Manager) Active() *ScanHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
