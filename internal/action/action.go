// Package action implements the Action Executor: it carries out trash,
// move, and permanent-delete batches over the members a caller has
// selected from one or more duplicate groups, enforcing the safety rules
// and recording every outcome to the audit log.
package action

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/duplifind/duplifind/internal/errs"
	"github.com/duplifind/duplifind/internal/model"
)

// Kind names the action requested for a batch.
type Kind string

const (
	KindTrash     Kind = "trash"
	KindMove      Kind = "move"
	KindPermanent Kind = "delete"
)

// CollisionPolicy controls what happens when a move/copy target path is
// already occupied.
type CollisionPolicy string

const (
	// CollisionRename appends a numeric suffix to the destination
	// basename until an unused name is found. Default.
	CollisionRename CollisionPolicy = "rename"
	// CollisionOverwriteIfSameHash overwrites the destination only when
	// its current full-hash matches the source's; otherwise skips.
	CollisionOverwriteIfSameHash CollisionPolicy = "overwrite_if_same_hash"
	// CollisionSkip always skips a colliding destination.
	CollisionSkip CollisionPolicy = "skip"
)

// ErrWouldEmptyGroup is returned by Execute when a batch's effective
// selection would remove every member of some group. The whole batch is
// rejected before any action executes.
var ErrWouldEmptyGroup = errors.New("selection would remove every member of a group")

// GroupSelection pairs one duplicate group with the members of it a
// caller wants acted on.
type GroupSelection struct {
	Group    *model.DuplicateGroup
	Selected []*model.Member
}

// Options configures one Execute call.
type Options struct {
	Kind Kind
	// DestDir is required for KindMove; ignored otherwise.
	DestDir string
	// Permanent must be explicitly true to honor KindPermanent; a false
	// or zero value downgrades a permanent-delete request to trash.
	Permanent bool
	// Collision governs move/copy destination collisions. Zero value
	// defaults to CollisionRename.
	Collision CollisionPolicy
	// TrashDir is where KindTrash moves files under.
	TrashDir string
}

func (o Options) collisionPolicy() CollisionPolicy {
	if o.Collision == "" {
		return CollisionRename
	}
	return o.Collision
}

// Outcome is the final per-member record of one Execute call.
type Outcome struct {
	Path   string
	State  model.MemberState
	Dest   string
	Reason string
}

// BatchResult is the aggregate result of one Execute call.
type BatchResult struct {
	Outcomes []Outcome
}

// Executor runs action batches and writes their audit trail.
type Executor struct {
	audit *AuditLog
}

// NewExecutor returns an Executor that appends to the given audit log.
func NewExecutor(audit *AuditLog) *Executor {
	return &Executor{audit: audit}
}

// Execute runs opts.Kind over every selected member across selections, one
// file at a time. It rejects the entire batch up front if any group's
// effective selection would leave it with zero kept members (safety rule
// 1); no filesystem changes or audit entries occur in that case. Otherwise
// it processes sequentially, fsyncing an audit entry before touching the
// next file, and keeps going past per-file failures — a failure never
// aborts the batch. Context cancellation stops dispatching new files but
// lets the file in flight finish.
func (e *Executor) Execute(ctx context.Context, selections []GroupSelection, opts Options) (*BatchResult, error) {
	kind := opts.Kind
	if kind == KindPermanent && !opts.Permanent {
		kind = KindTrash
	}

	for _, sel := range selections {
		if len(sel.Selected) > 0 && len(sel.Selected) >= len(sel.Group.Members) {
			return nil, errs.Action("execute", "", ErrWouldEmptyGroup)
		}
	}

	result := &BatchResult{}
	for _, sel := range selections {
		for _, m := range sel.Selected {
			if ctx.Err() != nil {
				result.Outcomes = append(result.Outcomes, Outcome{
					Path: m.Descriptor.Path, State: model.StateSkipped, Reason: "cancelled",
				})
				continue
			}
			outcome := e.executeOne(ctx, m, kind, opts)
			result.Outcomes = append(result.Outcomes, outcome)
		}
	}
	return result, nil
}

func (e *Executor) executeOne(ctx context.Context, m *model.Member, kind Kind, opts Options) Outcome {
	path := m.Descriptor.Path

	info, err := os.Stat(path)
	if err != nil {
		return e.record(kind, path, "", model.StateSkipped, "missing: "+err.Error())
	}
	if info.Size() != m.Descriptor.Size || info.ModTime().Unix() != m.Descriptor.MTime.Unix() {
		return e.record(kind, path, "", model.StateSkipped, "changed")
	}

	switch kind {
	case KindTrash:
		return e.doTrash(path, opts)
	case KindMove:
		return e.doMove(path, opts)
	case KindPermanent:
		return e.doPermanentDelete(path)
	default:
		return e.record(kind, path, "", model.StateFailed, fmt.Sprintf("unknown action kind %q", kind))
	}
}

func (e *Executor) doTrash(path string, opts Options) Outcome {
	if opts.TrashDir == "" {
		return e.record(KindTrash, path, "", model.StateFailed, "no trash directory configured")
	}
	dest := trashDestPath(opts.TrashDir, path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return e.record(KindTrash, path, "", model.StateFailed, "create trash dir: "+err.Error())
	}
	if err := moveFile(path, dest); err != nil {
		return e.record(KindTrash, path, "", model.StateFailed, "move to trash: "+err.Error())
	}
	return e.record(KindTrash, path, dest, model.StateDone, "")
}

func (e *Executor) doMove(path string, opts Options) Outcome {
	if opts.DestDir == "" {
		return e.record(KindMove, path, "", model.StateFailed, "no destination directory configured")
	}
	dest, err := resolveDestination(filepath.Join(opts.DestDir, filepath.Base(path)), path, opts.collisionPolicy())
	if err != nil {
		return e.record(KindMove, path, "", model.StateFailed, err.Error())
	}
	if dest == "" {
		return e.record(KindMove, path, "", model.StateSkipped, "destination exists")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return e.record(KindMove, path, "", model.StateFailed, "create destination dir: "+err.Error())
	}
	if err := moveFile(path, dest); err != nil {
		return e.record(KindMove, path, "", model.StateFailed, "move: "+err.Error())
	}
	return e.record(KindMove, path, dest, model.StateDone, "")
}

func (e *Executor) doPermanentDelete(path string) Outcome {
	if err := os.Remove(path); err != nil {
		return e.record(KindPermanent, path, "", model.StateFailed, "unlink: "+err.Error())
	}
	return e.record(KindPermanent, path, "", model.StateDone, "")
}

func (e *Executor) record(kind Kind, src, dst string, state model.MemberState, reason string) Outcome {
	outcome := Outcome{Path: src, State: state, Dest: dst, Reason: reason}

	var auditOutcome model.AuditOutcome
	switch state {
	case model.StateDone:
		auditOutcome = model.OutcomeSuccess
	case model.StateSkipped:
		auditOutcome = model.OutcomeSkipped
	default:
		auditOutcome = model.OutcomeFailed
	}

	var auditAction model.AuditAction
	switch kind {
	case KindTrash:
		auditAction = model.ActionTrash
	case KindMove:
		auditAction = model.ActionMove
	case KindPermanent:
		auditAction = model.ActionPermanent
	}

	if e.audit != nil {
		if err := e.audit.Append(model.AuditEntry{
			TS:      time.Now(),
			Action:  auditAction,
			Src:     src,
			Dst:     dst,
			Outcome: auditOutcome,
			Reason:  reason,
		}); err != nil {
			outcome.Reason = outcome.Reason + "; audit write failed: " + err.Error()
		}
	}
	return outcome
}

// trashDestPath mirrors the dated-subdirectory layout under trashDir,
// disambiguating same-basename files arriving the same day with a
// nanosecond-precision prefix.
func trashDestPath(trashDir, originalPath string) string {
	now := time.Now()
	dateDir := now.Format("2006-01-02")
	basename := filepath.Base(originalPath)
	return filepath.Join(trashDir, dateDir, fmt.Sprintf("%d_%s", now.UnixNano(), basename))
}

// resolveDestination applies the configured collision policy to a desired
// destination path. It returns ("", nil) when the policy resolves to
// skipping (the caller treats that as StateSkipped, not an error).
func resolveDestination(dest, src string, policy CollisionPolicy) (string, error) {
	if _, err := os.Stat(dest); err != nil {
		if os.IsNotExist(err) {
			return dest, nil
		}
		return "", err
	}

	switch policy {
	case CollisionSkip:
		return "", nil
	case CollisionOverwriteIfSameHash:
		same, err := sameContent(src, dest)
		if err != nil {
			return "", err
		}
		if !same {
			return "", nil
		}
		return dest, nil
	case CollisionRename:
		fallthrough
	default:
		return renameWithSuffix(dest)
	}
}

// renameWithSuffix finds the first "<base>-N<ext>" variant of dest that
// does not yet exist.
func renameWithSuffix(dest string) (string, error) {
	ext := filepath.Ext(dest)
	base := dest[:len(dest)-len(ext)]
	for n := 1; n < 10000; n++ {
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted suffix attempts for %q", dest)
}

// sameContent reports whether two files are byte-identical by comparing
// SHA-256 digests. Used only for the overwrite-if-same-hash collision
// policy, where correctness depends on not trusting the cache's witness.
func sameContent(a, b string) (bool, error) {
	ha, err := sha256File(a)
	if err != nil {
		return false, err
	}
	hb, err := sha256File(b)
	if err != nil {
		return false, err
	}
	return string(ha) == string(hb), nil
}

func sha256File(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// moveFile tries os.Rename first; falls back to copy-then-verify-then-
// delete on a cross-device error, checksumming before removing the
// source so a failed copy never loses data.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if le, ok := err.(*os.LinkError); ok && errors.Is(le.Err, syscall.EXDEV) {
		return copyVerifyDelete(src, dst)
	} else {
		return err
	}
}

func copyVerifyDelete(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}

	srcSum, err := sha256File(src)
	if err != nil {
		return err
	}
	dstSum, err := sha256File(dst)
	if err != nil {
		return err
	}
	if string(srcSum) != string(dstSum) {
		err = fmt.Errorf("checksum mismatch after copy of %q", src)
		return err
	}

	in.Close()
	return os.Remove(src)
}
