// Package groupmgr accumulates (descriptor, full-hash) tuples into
// DuplicateGroups keyed by (size, full-hash), and applies the five
// selection strategies that mark one member of a group "kept" and the
// rest "selected" for the action executor.
package groupmgr

import (
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/duplifind/duplifind/internal/model"
)

// Stats summarizes a completed accumulation.
type Stats struct {
	GroupCount        int
	TotalDuplicateFiles int64 // every member across every group, kept members included
	TotalWastedBytes  int64
}

// Manager accumulates duplicate groups. Safe for concurrent Add calls;
// Groups/Stats should be called only after accumulation is complete.
type Manager struct {
	mu     sync.Mutex
	groups map[string]*model.DuplicateGroup
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{groups: make(map[string]*model.DuplicateGroup)}
}

func groupKey(size int64, fullHash []byte) string {
	return fmt.Sprintf("%d:%s", size, hex.EncodeToString(fullHash))
}

// Add records one file's full-hash result, growing or creating the group
// keyed by (descriptor.Size, fullHash).
func (m *Manager) Add(descriptor model.FileDescriptor, fullHash []byte) {
	key := groupKey(descriptor.Size, fullHash)

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[key]
	if !ok {
		g = &model.DuplicateGroup{
			Size:     descriptor.Size,
			FullHash: hex.EncodeToString(fullHash),
		}
		m.groups[key] = g
	}
	g.Members = append(g.Members, model.Member{Descriptor: descriptor})
}

// Groups returns every accumulated group with two or more members
// (a singleton is not a duplicate — it only reached this stage because
// its quick-hash collided with another file that turned out, on full
// content comparison, to differ), sorted by wasted bytes descending.
// Each group's members are sorted lexicographically by path.
func (m *Manager) Groups() []*model.DuplicateGroup {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.DuplicateGroup, 0, len(m.groups))
	for _, g := range m.groups {
		if len(g.Members) < 2 {
			continue
		}
		g.SortMembers()
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WastedBytes() != out[j].WastedBytes() {
			return out[i].WastedBytes() > out[j].WastedBytes()
		}
		return out[i].FullHash < out[j].FullHash
	})
	return out
}

// Stats aggregates counts across every real (>=2-member) group.
func (m *Manager) Stats() Stats {
	var s Stats
	for _, g := range m.Groups() {
		s.GroupCount++
		s.TotalDuplicateFiles += int64(len(g.Members))
		s.TotalWastedBytes += g.WastedBytes()
	}
	return s
}
