//go:build !unix

package walker

import "io/fs"

// fileID is unavailable on this platform; the walker falls back to
// path-only identity, which never declares duplicates but may rescan the
// same physical file reached by two paths.
func fileID(info fs.FileInfo) (uint64, bool) {
	return 0, false
}
