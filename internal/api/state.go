package api

import (
	"sync"

	"github.com/duplifind/duplifind/internal/pipeline"
)

// State holds the one piece of server-wide mutable state the HTTP layer
// needs beyond what pipeline.Manager already tracks: the most recently
// completed scan's Result, which groups/execute/status all read from.
// There is no DB to query it back out of; it lives only as long as the
// process does.
type State struct {
	mu   sync.RWMutex
	last *pipeline.Result
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// SetLastResult records the outcome of a finished scan.
func (s *State) SetLastResult(r *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
}

// LastResult returns the most recently completed scan's Result, or nil if
// no scan has completed yet.
func (s *State) LastResult() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// watchAndRecord blocks until handle's scan finishes, then records its
// Result (success or not) into s. Intended to be run in its own goroutine
// right after a scan is started.
func watchAndRecord(s *State, handle *pipeline.ScanHandle) {
	result, _ := handle.Result()
	if result != nil {
		s.SetLastResult(result)
	}
}
