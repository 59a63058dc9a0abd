// Package hasher implements the two sampling tiers the pipeline runs
// between the size pass and the full-hash pass: a cheap, fixed-cost
// quick-hash over a head/tail/size sample, and a streamed full-hash over
// the whole file using a pluggable algorithm.
package hasher

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/duplifind/duplifind/internal/model"
)

// DefaultSampleSize is the number of bytes read from the head and from the
// tail of a file when computing its quick-hash.
const DefaultSampleSize = 4096

// QuickResult pairs a file with its quick-hash.
type QuickResult struct {
	Descriptor model.FileDescriptor
	Sum        uint64
}

// FullResult pairs a file with its full-hash.
type FullResult struct {
	Descriptor model.FileDescriptor
	Sum        []byte
	Algo       string
}

// QuickHash computes a 64-bit xxh3 digest over the file's size, its first
// sampleSize bytes, and its last sampleSize bytes. Files no larger than
// 2*sampleSize contribute only a head sample (capped at the file's own
// size, so a file smaller than sampleSize is read in full exactly once);
// a tail sample is added only once the file exceeds 2*sampleSize, so the
// head and tail windows never overlap. Returns the digest and the number
// of file bytes actually read.
func QuickHash(path string, size int64, sampleSize int64) (uint64, int64, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	d := xxh3.New()

	var sizeTag [8]byte
	binary.LittleEndian.PutUint64(sizeTag[:], uint64(size))
	d.Write(sizeTag[:])

	if size <= 2*sampleSize {
		headLen := size
		if headLen > sampleSize {
			headLen = sampleSize
		}
		headBuf := make([]byte, headLen)
		n, err := io.ReadFull(f, headBuf)
		if err != nil {
			return 0, int64(n), fmt.Errorf("read: %w", err)
		}
		d.Write(headBuf)
		return d.Sum64(), int64(n), nil
	}

	headBuf := make([]byte, sampleSize)
	hn, err := io.ReadFull(f, headBuf)
	if err != nil {
		return 0, int64(hn), fmt.Errorf("read head: %w", err)
	}
	d.Write(headBuf)

	if _, err := f.Seek(-sampleSize, io.SeekEnd); err != nil {
		return 0, int64(hn), fmt.Errorf("seek tail: %w", err)
	}
	tailBuf := make([]byte, sampleSize)
	tn, err := io.ReadFull(f, tailBuf)
	if err != nil {
		return 0, int64(hn + tn), fmt.Errorf("read tail: %w", err)
	}
	d.Write(tailBuf)

	return d.Sum64(), int64(hn + tn), nil
}

// HashFactory builds a fresh hash.Hash for a configured full-hash
// algorithm. Registered in algorithms.go.
type HashFactory func() hash.Hash

// adaptiveBufferSize picks a copy buffer sized to the file: small files
// get a 64KiB buffer, large ones get 4MiB, trading memory for fewer
// syscalls on big reads.
func adaptiveBufferSize(size int64) int {
	const (
		largeFileThreshold = 64 * 1024 * 1024
		smallBuf           = 64 * 1024
		largeBuf           = 4 * 1024 * 1024
	)
	if size >= largeFileThreshold {
		return largeBuf
	}
	return smallBuf
}

// FullHash streams the entire file through newHash, returning the digest
// and the number of bytes read.
func FullHash(path string, size int64, newHash HashFactory) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := newHash()
	buf := make([]byte, adaptiveBufferSize(size))
	n, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return nil, n, fmt.Errorf("read: %w", err)
	}
	return h.Sum(nil), n, nil
}

// RunQuickHashers spawns numWorkers goroutines, each computing the
// quick-hash of files read from in and sending a QuickResult to out. A
// file whose quick-hash fails is reported through warn and dropped rather
// than aborting the pass. out is closed once every worker has returned.
func RunQuickHashers(ctx context.Context, numWorkers int, sampleSize int64, in <-chan model.FileDescriptor, out chan<- QuickResult, onBytes func(int64), warn func(path, reason string)) {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case fd, ok := <-in:
					if !ok {
						return
					}
					sum, n, err := QuickHash(fd.Path, fd.Size, sampleSize)
					if err != nil {
						if warn != nil {
							warn(fd.Path, "quick hash: "+err.Error())
						}
						slog.Warn("hasher: quick hash failed", "path", fd.Path, "error", err)
						continue
					}
					if onBytes != nil {
						onBytes(n)
					}
					select {
					case out <- QuickResult{Descriptor: fd, Sum: sum}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
}

// RunFullHashers spawns numWorkers goroutines, each computing the
// full-hash of files read from in and sending a FullResult to out. A file
// whose full-hash fails is reported through warn and dropped. out is
// closed once every worker has returned.
func RunFullHashers(ctx context.Context, numWorkers int, algo string, newHash HashFactory, in <-chan model.FileDescriptor, out chan<- FullResult, onBytes func(int64), warn func(path, reason string)) {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case fd, ok := <-in:
					if !ok {
						return
					}
					sum, n, err := FullHash(fd.Path, fd.Size, newHash)
					if err != nil {
						if warn != nil {
							warn(fd.Path, "full hash: "+err.Error())
						}
						slog.Warn("hasher: full hash failed", "path", fd.Path, "error", err)
						continue
					}
					if onBytes != nil {
						onBytes(n)
					}
					select {
					case out <- FullResult{Descriptor: fd, Sum: sum, Algo: algo}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
}
