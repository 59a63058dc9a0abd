package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/duplifind/duplifind/internal/cache"
	"github.com/duplifind/duplifind/internal/errs"
	"github.com/duplifind/duplifind/internal/groupmgr"
	"github.com/duplifind/duplifind/internal/hasher"
	"github.com/duplifind/duplifind/internal/model"
	"github.com/duplifind/duplifind/internal/walker"
)

// Result is the outcome of one completed (or cancelled) scan.
type Result struct {
	Groups    *groupmgr.Manager
	Stats     groupmgr.Stats
	Progress  Snapshot
	Warnings  []string
	Cancelled bool
}

// Scan runs the full three-pass pipeline synchronously: size-bucket,
// quick-hash-bucket, full-hash, accumulating survivors into a
// groupmgr.Manager. c may be nil, in which case every file is hashed
// fresh (cache disabled). progress may be nil; pass a *Progress obtained
// from a ScanHandle to observe live counters from another goroutine
// while Scan runs. Scan returns once every stage has drained or ctx is
// cancelled.
func Scan(ctx context.Context, cfg Config, c *cache.Cache, progress *Progress, sink ProgressSink) (*Result, error) {
	if sink == nil {
		sink = NoopSink{}
	}
	if progress == nil {
		progress = &Progress{}
	}
	if len(cfg.Roots) == 0 {
		return nil, errs.Input("scan", errNoRoots)
	}
	if !cfg.CacheEnabled {
		c = nil
	}

	newHash, err := hasher.NewHashFactory(cfg.hashAlgorithm())
	if err != nil {
		return nil, errs.Input("scan", err)
	}

	var warnings []string
	warn := func(path, reason string) {
		warnings = append(warnings, path+": "+reason)
		sink.OnWarning(path, reason)
	}

	stopReporting := make(chan struct{})
	reportingDone := make(chan struct{})
	go func() {
		defer close(reportingDone)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sink.OnProgress(progress.snapshot())
			case <-stopReporting:
				sink.OnProgress(progress.snapshot())
				return
			}
		}
	}()

	sink.OnPassBegin("walk+size")
	walkOut := make(chan model.FileDescriptor, 1024)
	candidates := make(chan model.FileDescriptor, 1024)

	walkErrCh := make(chan error, 1)
	go func() {
		walkErrCh <- walker.Walk(ctx, walker.Options{
			Roots:          cfg.Roots,
			Include:        cfg.Include,
			Exclude:        cfg.Exclude,
			MinSize:        cfg.MinSize,
			FollowSymlinks: cfg.FollowSymlinks,
			Workers:        cfg.walkWorkers(),
		}, walkOut, warn)
	}()
	sizeBucket(ctx, progress, walkOut, candidates)

	sink.OnPassBegin("quick-hash")
	quickOut := make(chan hasher.QuickResult, 1024)
	cacheAwareQuickPass(ctx, c, cfg.sampleSize(), cfg.quickWorkers(), progress, candidates, quickOut, warn)

	quickCandidates := make(chan hasher.QuickResult, 1024)
	quickHashBucket(ctx, progress, quickOut, quickCandidates)

	sink.OnPassBegin("full-hash")
	fullOut := make(chan hasher.FullResult, 1024)
	cacheAwareFullPass(ctx, c, cfg.hashAlgorithm(), newHash, cfg.fullWorkers(), progress, quickCandidates, fullOut, warn)

	groups := groupmgr.New()
	for fr := range fullOut {
		groups.Add(fr.Descriptor, fr.Sum)
	}

	close(stopReporting)
	<-reportingDone

	if walkErr := <-walkErrCh; walkErr != nil {
		return nil, walkErr
	}

	result := &Result{
		Groups:    groups,
		Stats:     groups.Stats(),
		Progress:  progress.snapshot(),
		Warnings:  warnings,
		Cancelled: ctx.Err() != nil,
	}
	sink.OnComplete(result)

	if ctx.Err() != nil {
		return result, errs.ErrCancelled
	}
	return result, nil
}

var errNoRoots = errors.New("no scan roots configured")
