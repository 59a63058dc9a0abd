package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSetScanJobFiresOnSchedule(t *testing.T) {
	s := New()
	var fired atomic.Int32
	if err := s.SetScanJob("@every 50ms", func() { fired.Add(1) }); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	time.Sleep(180 * time.Millisecond)
	if fired.Load() < 2 {
		t.Errorf("got %d firings, want at least 2", fired.Load())
	}
}

func TestSetScanJobReplacesPrevious(t *testing.T) {
	s := New()
	var firstCount, secondCount atomic.Int32

	if err := s.SetScanJob("@every 30ms", func() { firstCount.Add(1) }); err != nil {
		t.Fatal(err)
	}
	s.Start()
	time.Sleep(60 * time.Millisecond)

	if err := s.SetScanJob("@every 30ms", func() { secondCount.Add(1) }); err != nil {
		t.Fatal(err)
	}
	time.Sleep(90 * time.Millisecond)
	s.Stop()

	if secondCount.Load() == 0 {
		t.Error("expected the replacement job to fire")
	}
	firstAfterReplace := firstCount.Load()
	time.Sleep(60 * time.Millisecond)
	if firstCount.Load() != firstAfterReplace {
		t.Error("expected the original job to stop firing after replacement")
	}
}

func TestAddJobRunsAlongsideScanJob(t *testing.T) {
	s := New()
	var scanCount, pruneCount atomic.Int32

	if err := s.SetScanJob("@every 40ms", func() { scanCount.Add(1) }); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("@every 40ms", func() { pruneCount.Add(1) }); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	time.Sleep(180 * time.Millisecond)
	if scanCount.Load() == 0 || pruneCount.Load() == 0 {
		t.Errorf("expected both jobs to fire, got scan=%d prune=%d", scanCount.Load(), pruneCount.Load())
	}
}

func TestNextRunAtNilBeforeJobSet(t *testing.T) {
	s := New()
	if s.NextRunAt() != nil {
		t.Error("expected nil before any scan job is set")
	}
}

func TestNextRunAtAfterJobSet(t *testing.T) {
	s := New()
	if err := s.SetScanJob("@every 1h", func() {}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	if s.NextRunAt() == nil {
		t.Error("expected a next run time once a scan job is set")
	}
	if s.CronExpr() != "@every 1h" {
		t.Errorf("got CronExpr=%q, want %q", s.CronExpr(), "@every 1h")
	}
}

func TestSetScanJobRejectsInvalidExpression(t *testing.T) {
	s := New()
	if err := s.SetScanJob("not a cron expression", func() {}); err == nil {
		t.Error("expected an error for an invalid cron expression")
	}
}
