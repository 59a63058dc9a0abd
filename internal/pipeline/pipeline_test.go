package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, content, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestScanFindsSimpleDuplicateGroup(t *testing.T) {
	dir := t.TempDir()
	content := []byte("the quick brown fox jumps over the lazy dog, repeated a bunch of times to clear the sample window")
	writeTestFile(t, dir, "a.txt", content)
	writeTestFile(t, dir, "b.txt", content)
	writeTestFile(t, dir, "unique.txt", []byte("nothing else looks like this"))

	cfg := DefaultConfig()
	cfg.Roots = []string{dir}
	cfg.CacheEnabled = false

	result, err := Scan(context.Background(), cfg, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	groups := result.Groups.Groups()
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0].Members) != 2 {
		t.Errorf("got %d members, want 2", len(groups[0].Members))
	}
}

func TestScanNoDuplicatesYieldsNoGroups(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", []byte("alpha"))
	writeTestFile(t, dir, "b.txt", []byte("beta-and-different-length"))

	cfg := DefaultConfig()
	cfg.Roots = []string{dir}
	cfg.CacheEnabled = false

	result, err := Scan(context.Background(), cfg, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Groups.Groups()) != 0 {
		t.Errorf("expected no groups, got %d", len(result.Groups.Groups()))
	}
}

func TestScanMissingRootIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Roots = []string{"/no/such/path/xyz123"}

	_, err := Scan(context.Background(), cfg, nil, nil, nil)
	if err == nil {
		t.Fatal("expected an error for a missing root")
	}
}

func TestScanNoRootsIsInputError(t *testing.T) {
	cfg := DefaultConfig()
	_, err := Scan(context.Background(), cfg, nil, nil, nil)
	if err == nil {
		t.Fatal("expected an error when no roots are configured")
	}
}

func TestScanCancellationReturnsPromptly(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 100; i++ {
		writeTestFile(t, dir, fmt.Sprintf("file_%d.txt", i), []byte("some content that is long enough to matter"))
	}

	cfg := DefaultConfig()
	cfg.Roots = []string{dir}
	cfg.CacheEnabled = false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		Scan(ctx, cfg, nil, nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Scan did not return promptly after cancellation")
	}
}

type recordingSink struct {
	passes   []string
	warnings []string
	complete *Result
}

func (s *recordingSink) OnPassBegin(pass string) { s.passes = append(s.passes, pass) }
func (s *recordingSink) OnProgress(Snapshot)     {}
func (s *recordingSink) OnWarning(path, reason string) {
	s.warnings = append(s.warnings, path+": "+reason)
}
func (s *recordingSink) OnComplete(r *Result) { s.complete = r }

func TestScanReportsPassesAndCompletion(t *testing.T) {
	dir := t.TempDir()
	content := []byte("duplicate content duplicate content duplicate content padding")
	writeTestFile(t, dir, "a.txt", content)
	writeTestFile(t, dir, "b.txt", content)

	cfg := DefaultConfig()
	cfg.Roots = []string{dir}
	cfg.CacheEnabled = false

	sink := &recordingSink{}
	_, err := Scan(context.Background(), cfg, nil, nil, sink)
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.passes) != 3 {
		t.Errorf("got %d passes reported, want 3", len(sink.passes))
	}
	if sink.complete == nil {
		t.Error("expected OnComplete to be called")
	}
}

func TestManagerRejectsConcurrentScans(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 50; i++ {
		writeTestFile(t, dir, fmt.Sprintf("file_%d.txt", i), []byte("content padding to avoid instant completion races"))
	}

	cfg := DefaultConfig()
	cfg.Roots = []string{dir}
	cfg.CacheEnabled = false

	m := NewManager()
	h1, err := m.Start(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Start(context.Background(), cfg, nil, nil)
	if err != ErrAlreadyRunning {
		t.Errorf("got err=%v, want ErrAlreadyRunning", err)
	}

	h1.Result()
}

func TestManagerCancelStopsActiveScan(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 200; i++ {
		writeTestFile(t, dir, fmt.Sprintf("file_%d.txt", i), []byte("padding content for a slower scan"))
	}

	cfg := DefaultConfig()
	cfg.Roots = []string{dir}
	cfg.CacheEnabled = false

	m := NewManager()
	h, err := m.Start(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	h.Cancel()

	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not stop after Cancel")
	}
}

func TestManagerCancelWithNoActiveScan(t *testing.T) {
	m := NewManager()
	if err := m.Cancel(); err != ErrNoActiveScan {
		t.Errorf("got err=%v, want ErrNoActiveScan", err)
	}
}
