package action

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/duplifind/duplifind/internal/model"
)

const (
	defaultMaxLogBytes = 10 * 1024 * 1024
	defaultMaxLogFiles = 10
	logFilePrefix      = "audit-"
	logFileSuffix      = ".log"
)

// AuditLog is an append-only, size-rotated, line-oriented JSON log. It is
// the only source of truth for what the Action Executor did; nothing else
// is mutated. Safe for concurrent use, though the Executor only ever
// writes from the single goroutine processing a batch.
type AuditLog struct {
	dir      string
	maxBytes int64
	maxFiles int
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	size     int64
	seq      atomic.Int64
}

// OpenAuditLog opens (creating if necessary) the audit directory at dir,
// scans any existing rotated files to continue the sequence-number series
// without reuse or gaps across process restarts, and opens the current
// segment for appending.
func OpenAuditLog(dir string) (*AuditLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	a := &AuditLog{dir: dir, maxBytes: defaultMaxLogBytes, maxFiles: defaultMaxLogFiles}

	lastSeq, err := scanLastSeq(dir)
	if err != nil {
		return nil, fmt.Errorf("scan existing audit logs: %w", err)
	}
	a.seq.Store(lastSeq)

	if err := a.openCurrent(); err != nil {
		return nil, err
	}
	return a, nil
}

// currentPath is the always-written-to segment; rotation renames it aside.
func (a *AuditLog) currentPath() string {
	return filepath.Join(a.dir, logFilePrefix+"current"+logFileSuffix)
}

func (a *AuditLog) openCurrent() error {
	f, err := os.OpenFile(a.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	a.file = f
	a.writer = bufio.NewWriter(f)
	a.size = info.Size()
	return nil
}

// Append writes one entry, fsyncing before returning so a crash never
// leaves the log inconsistent with the files actually changed. It assigns
// the entry's Seq field before writing.
func (a *AuditLog) Append(entry model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry.Seq = a.seq.Add(1)
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	if a.size+int64(len(line)) > a.maxBytes && a.size > 0 {
		if err := a.rotateLocked(); err != nil {
			return err
		}
	}

	if _, err := a.writer.Write(line); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := a.writer.Flush(); err != nil {
		return fmt.Errorf("flush audit entry: %w", err)
	}
	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("fsync audit entry: %w", err)
	}
	a.size += int64(len(line))
	return nil
}

func (a *AuditLog) rotateLocked() error {
	if err := a.writer.Flush(); err != nil {
		return fmt.Errorf("flush before rotate: %w", err)
	}
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("close before rotate: %w", err)
	}

	rotated := filepath.Join(a.dir, fmt.Sprintf("%s%020d%s", logFilePrefix, a.seq.Load(), logFileSuffix))
	if err := os.Rename(a.currentPath(), rotated); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}

	if err := a.openCurrent(); err != nil {
		return err
	}
	return a.pruneOldLocked()
}

// pruneOldLocked removes rotated segments beyond maxFiles, oldest first.
func (a *AuditLog) pruneOldLocked() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return fmt.Errorf("list audit dir: %w", err)
	}
	var rotated []string
	for _, e := range entries {
		name := e.Name()
		if name == filepath.Base(a.currentPath()) {
			continue
		}
		if strings.HasPrefix(name, logFilePrefix) && strings.HasSuffix(name, logFileSuffix) {
			rotated = append(rotated, name)
		}
	}
	sort.Strings(rotated)
	if len(rotated) <= a.maxFiles {
		return nil
	}
	for _, name := range rotated[:len(rotated)-a.maxFiles] {
		if err := os.Remove(filepath.Join(a.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old audit segment %q: %w", name, err)
		}
	}
	return nil
}

// Close flushes and closes the current segment.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.writer.Flush(); err != nil {
		return err
	}
	return a.file.Close()
}

// scanLastSeq reads the highest seq value recorded across every log segment
// (rotated and current) in dir, so a fresh process continues numbering
// without reuse. A missing or empty directory yields 0.
func scanLastSeq(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var last int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		seq, err := lastSeqInFile(filepath.Join(dir, name))
		if err != nil {
			return 0, fmt.Errorf("read %q: %w", name, err)
		}
		if seq > last {
			last = seq
		}
	}
	return last, nil
}

func lastSeqInFile(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var last int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry model.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // tolerate a torn final line from a prior crash
		}
		if entry.Seq > last {
			last = entry.Seq
		}
	}
	return last, scanner.Err()
}
