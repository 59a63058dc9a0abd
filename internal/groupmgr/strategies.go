package groupmgr

import (
	"fmt"
	"strings"

	"github.com/duplifind/duplifind/internal/model"
)

// Strategy names a selection strategy the Group Manager can apply to a
// DuplicateGroup.
type Strategy string

const (
	KeepOldest            Strategy = "keep_oldest"
	KeepNewest            Strategy = "keep_newest"
	KeepShortestPath       Strategy = "keep_shortest_path"
	KeepFirstAlphabetical Strategy = "keep_first_alphabetical"
	Manual                Strategy = "manual"
)

// ApplyStrategy marks exactly one member of g as kept (all others
// selected), per strategy, or marks nothing (Manual). Applying a
// strategy is idempotent and never reorders g.Members.
func ApplyStrategy(g *model.DuplicateGroup, strategy Strategy) error {
	for i := range g.Members {
		g.Members[i].Kept = false
		g.Members[i].Selected = false
	}

	if strategy == Manual {
		return nil
	}
	if len(g.Members) == 0 {
		return nil
	}

	var keepIdx int
	switch strategy {
	case KeepOldest:
		keepIdx = pickExtreme(g, func(a, b *model.Member) bool {
			return a.Descriptor.MTime.Before(b.Descriptor.MTime)
		})
	case KeepNewest:
		keepIdx = pickExtreme(g, func(a, b *model.Member) bool {
			return a.Descriptor.MTime.After(b.Descriptor.MTime)
		})
	case KeepShortestPath:
		keepIdx = pickExtreme(g, func(a, b *model.Member) bool {
			as, bs := pathDepth(a.Descriptor.Path), pathDepth(b.Descriptor.Path)
			if as != bs {
				return as < bs
			}
			return len(a.Descriptor.Path) < len(b.Descriptor.Path)
		})
	case KeepFirstAlphabetical:
		keepIdx = pickExtreme(g, func(a, b *model.Member) bool {
			return a.Descriptor.Path < b.Descriptor.Path
		})
	default:
		return fmt.Errorf("unknown selection strategy %q", strategy)
	}

	for i := range g.Members {
		if i == keepIdx {
			g.Members[i].Kept = true
		} else {
			g.Members[i].Selected = true
		}
	}
	return nil
}

// pickExtreme returns the index of the member that is "better" under
// less(a, b), breaking every tie by shortest path (fewest separators, then
// fewest bytes) then lexicographic order — the tie-breaker every strategy but keep_first_alphabetical
// shares, since that strategy already IS the lexicographic order.
func pickExtreme(g *model.DuplicateGroup, less func(a, b *model.Member) bool) int {
	best := 0
	for i := 1; i < len(g.Members); i++ {
		a, b := &g.Members[i], &g.Members[best]
		switch {
		case less(a, b):
			best = i
		case less(b, a):
			// b strictly better, keep best
		default:
			// tie: shortest path, then lexicographic
			ad, bd := pathDepth(a.Descriptor.Path), pathDepth(b.Descriptor.Path)
			if ad != bd {
				if ad < bd {
					best = i
				}
				continue
			}
			if al, bl := len(a.Descriptor.Path), len(b.Descriptor.Path); al != bl {
				if al < bl {
					best = i
				}
				continue
			}
			if a.Descriptor.Path < b.Descriptor.Path {
				best = i
			}
		}
	}
	return best
}

func pathDepth(path string) int {
	return strings.Count(path, "/")
}
