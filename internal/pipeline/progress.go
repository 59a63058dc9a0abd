package pipeline

import "sync/atomic"

// Progress holds live counters updated by the pipeline's stages. All
// fields are atomic so they can be written from worker goroutines and
// read by a ProgressSink without locks.
type Progress struct {
	FilesDiscovered atomic.Int64
	CandidatesFound atomic.Int64 // survived the size-bucket pass
	QuickHashed     atomic.Int64
	QuickCandidates atomic.Int64 // survived the quick-hash-bucket pass
	FullHashed      atomic.Int64
	BytesRead       atomic.Int64
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64
	Warnings        atomic.Int64
}

// Snapshot is a point-in-time, non-atomic copy of Progress suitable for
// handing to a ProgressSink or an API response.
type Snapshot struct {
	FilesDiscovered int64
	CandidatesFound int64
	QuickHashed     int64
	QuickCandidates int64
	FullHashed      int64
	BytesRead       int64
	CacheHits       int64
	CacheMisses     int64
	Warnings        int64
}

func (p *Progress) snapshot() Snapshot {
	return Snapshot{
		FilesDiscovered: p.FilesDiscovered.Load(),
		CandidatesFound: p.CandidatesFound.Load(),
		QuickHashed:     p.QuickHashed.Load(),
		QuickCandidates: p.QuickCandidates.Load(),
		FullHashed:      p.FullHashed.Load(),
		BytesRead:       p.BytesRead.Load(),
		CacheHits:       p.CacheHits.Load(),
		CacheMisses:     p.CacheMisses.Load(),
		Warnings:        p.Warnings.Load(),
	}
}

// ProgressSink is the capability interface the pipeline reports through.
// Implementations must return quickly; OnProgress in particular may be
// called from a ticking goroutine and must not block pipeline progress.
type ProgressSink interface {
	OnPassBegin(pass string)
	OnProgress(s Snapshot)
	OnWarning(path, reason string)
	OnComplete(result *Result)
}

// NoopSink implements ProgressSink with no-ops, for callers that don't
// need live progress (e.g. tests).
type NoopSink struct{}

func (NoopSink) OnPassBegin(string)        {}
func (NoopSink) OnProgress(Snapshot)       {}
func (NoopSink) OnWarning(string, string)  {}
func (NoopSink) OnComplete(*Result)        {}
