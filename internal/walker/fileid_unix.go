//go:build unix

package walker

import (
	"io/fs"
	"syscall"
)

// fileID returns the inode number backing info, when the platform's stat
// result exposes one.
func fileID(info fs.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Ino), true
}
