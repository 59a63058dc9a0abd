package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/duplifind/duplifind/internal/cache"
	"github.com/duplifind/duplifind/internal/config"
	"github.com/duplifind/duplifind/internal/errs"
	"github.com/duplifind/duplifind/internal/pipeline"
)

func newScanCmd() *cobra.Command {
	var roots []string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan directories for duplicate files",
		Long: `Runs the three-pass duplicate-detection pipeline (size bucket, quick-hash
bucket, full hash) over the configured roots, or the paths given on the
command line, and prints a summary of the duplicate groups found.

This runs the pipeline in-process; it does not require "duplifind serve"
to be running. To review and act on the resulting groups across separate
invocations, run "duplifind serve" instead and use the groups/strategy/
execute commands against it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				roots = args
			}
			return runScan(cmd.Context(), roots, !noProgress)
		},
	}
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func runScan(ctx context.Context, rootsOverride []string, showProgress bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errs.Input("load config", err)
	}

	pcfg := cfg.PipelineConfig()
	if len(rootsOverride) > 0 {
		pcfg.Roots = rootsOverride
	}

	var c *cache.Cache
	if pcfg.CacheEnabled {
		c, err = cache.Open(cfg.CacheOptions())
		if err != nil {
			return errs.Cache("open", err)
		}
		defer c.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := newCLISink(showProgress)

	result, err := pipeline.Scan(ctx, pcfg, c, nil, sink)
	if err != nil && !errors.Is(err, errs.ErrCancelled) {
		return err
	}

	printScanSummary(result)
	if result.Cancelled {
		return errs.ErrCancelled
	}
	return nil
}

func printScanSummary(r *pipeline.Result) {
	fmt.Printf("\nfiles discovered: %d\n", r.Progress.FilesDiscovered)
	fmt.Printf("candidates (size match): %d\n", r.Progress.CandidatesFound)
	fmt.Printf("quick-hashed: %d, full-hashed: %d\n", r.Progress.QuickHashed, r.Progress.FullHashed)
	fmt.Printf("bytes read: %s\n", humanize.Bytes(uint64(r.Progress.BytesRead)))
	fmt.Printf("cache hits: %d, misses: %d\n", r.Progress.CacheHits, r.Progress.CacheMisses)
	if len(r.Warnings) > 0 {
		fmt.Printf("warnings: %d\n", len(r.Warnings))
	}
	fmt.Println()
	fmt.Printf("duplicate groups: %d\n", r.Stats.GroupCount)
	fmt.Printf("duplicate files: %d\n", r.Stats.TotalDuplicateFiles)
	fmt.Printf("reclaimable space: %s\n", humanize.Bytes(uint64(r.Stats.TotalWastedBytes)))
}

// cliSink adapts pipeline.ProgressSink to a terminal progress bar: a
// spinner while the candidate count is unknown, throttled updates,
// cleared on finish.
type cliSink struct {
	enabled bool
	bar     *progressbar.ProgressBar
}

func newCLISink(enabled bool) *cliSink {
	s := &cliSink{enabled: enabled}
	if !enabled {
		return s
	}
	s.bar = progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return s
}

func (s *cliSink) OnPassBegin(pass string) {
	if s.bar != nil {
		s.bar.Describe(pass)
	}
}

func (s *cliSink) OnProgress(snap pipeline.Snapshot) {
	if s.bar != nil {
		_ = s.bar.Set64(snap.FilesDiscovered + snap.QuickHashed + snap.FullHashed)
	}
}

func (s *cliSink) OnWarning(path, reason string) {
	if s.enabled {
		fmt.Fprintf(os.Stderr, "\rwarning: %s: %s\n", path, reason)
	}
}

func (s *cliSink) OnComplete(*pipeline.Result) {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}
