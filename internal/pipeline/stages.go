package pipeline

import (
	"context"
	"time"

	"github.com/duplifind/duplifind/internal/cache"
	"github.com/duplifind/duplifind/internal/hasher"
	"github.com/duplifind/duplifind/internal/model"
)

// sizeBucket groups candidates by size. The first file seen at a given
// size is buffered; once a second arrives, both are forwarded and every
// subsequent file of that size is forwarded immediately. A size seen only
// once never reaches out — it cannot be part of a duplicate group. This
// pass never drops a zero-byte file on its own account: eligibility for
// the zero case is entirely the walker's MinSize floor's responsibility.
func sizeBucket(ctx context.Context, progress *Progress, in <-chan model.FileDescriptor, out chan<- model.FileDescriptor) {
	go func() {
		defer close(out)

		first := make(map[int64]model.FileDescriptor)
		seen := make(map[int64]bool)

		for {
			select {
			case <-ctx.Done():
				return
			case fd, ok := <-in:
				if !ok {
					return
				}
				progress.FilesDiscovered.Add(1)

				if seen[fd.Size] {
					progress.CandidatesFound.Add(1)
					if !sendGeneric(ctx, out, fd) {
						return
					}
					continue
				}

				if prev, ok := first[fd.Size]; ok {
					seen[fd.Size] = true
					delete(first, fd.Size)
					progress.CandidatesFound.Add(2)
					if !sendGeneric(ctx, out, prev) || !sendGeneric(ctx, out, fd) {
						return
					}
				} else {
					first[fd.Size] = fd
				}
			}
		}
	}()
}

// quickHashBucket groups QuickResults by (size, quick-hash), using the
// same first-seen/seen pattern as sizeBucket. Only files whose quick-hash
// collides with another candidate proceed to the full-hash pass.
func quickHashBucket(ctx context.Context, progress *Progress, in <-chan hasher.QuickResult, out chan<- hasher.QuickResult) {
	go func() {
		defer close(out)

		type key struct {
			size int64
			sum  uint64
		}
		first := make(map[key]hasher.QuickResult)
		seen := make(map[key]bool)

		for {
			select {
			case <-ctx.Done():
				return
			case qr, ok := <-in:
				if !ok {
					return
				}
				k := key{qr.Descriptor.Size, qr.Sum}

				if seen[k] {
					progress.QuickCandidates.Add(1)
					if !sendGeneric(ctx, out, qr) {
						return
					}
					continue
				}

				if prev, ok := first[k]; ok {
					seen[k] = true
					delete(first, k)
					progress.QuickCandidates.Add(2)
					if !sendGeneric(ctx, out, prev) || !sendGeneric(ctx, out, qr) {
						return
					}
				} else {
					first[k] = qr
				}
			}
		}
	}()
}

// cacheAwareQuickPass spawns workers workers reading FileDescriptors from
// in. Each worker checks the Hash Cache before computing: a witness-valid
// cache hit skips the read entirely; a miss computes the quick-hash and
// writes it back so the next scan of the same file is free.
func cacheAwareQuickPass(ctx context.Context, c *cache.Cache, sampleSize int64, workers int, progress *Progress, in <-chan model.FileDescriptor, out chan<- hasher.QuickResult, warn func(path, reason string)) {
	runWorkerPool(ctx, workers, in, out, func(fd model.FileDescriptor) (hasher.QuickResult, bool) {
		now := time.Now()
		if c != nil {
			if h, ok, err := c.Get(ctx, fd, now); err == nil && ok && h.HasQuick {
				progress.CacheHits.Add(1)
				progress.QuickHashed.Add(1)
				return hasher.QuickResult{Descriptor: fd, Sum: h.Quick}, true
			}
		}
		progress.CacheMisses.Add(1)

		sum, n, err := hasher.QuickHash(fd.Path, fd.Size, sampleSize)
		if err != nil {
			if warn != nil {
				warn(fd.Path, "quick hash: "+err.Error())
			}
			progress.Warnings.Add(1)
			return hasher.QuickResult{}, false
		}
		progress.BytesRead.Add(n)
		progress.QuickHashed.Add(1)

		if c != nil {
			_ = c.PutQuick(ctx, fd.Path, fd.Size, fd.MTime.Unix(), sum, now)
		}
		return hasher.QuickResult{Descriptor: fd, Sum: sum}, true
	})
}

// cacheAwareFullPass mirrors cacheAwareQuickPass for the full-hash tier.
func cacheAwareFullPass(ctx context.Context, c *cache.Cache, algo string, newHash hasher.HashFactory, workers int, progress *Progress, in <-chan hasher.QuickResult, out chan<- hasher.FullResult, warn func(path, reason string)) {
	quickIn := make(chan model.FileDescriptor)
	go func() {
		defer close(quickIn)
		for qr := range in {
			select {
			case quickIn <- qr.Descriptor:
			case <-ctx.Done():
				return
			}
		}
	}()

	runWorkerPool(ctx, workers, quickIn, out, func(fd model.FileDescriptor) (hasher.FullResult, bool) {
		now := time.Now()
		if c != nil {
			if h, ok, err := c.Get(ctx, fd, now); err == nil && ok && h.HasFull && h.FullAlgo == algo {
				progress.CacheHits.Add(1)
				progress.FullHashed.Add(1)
				return hasher.FullResult{Descriptor: fd, Sum: h.Full, Algo: algo}, true
			}
		}
		progress.CacheMisses.Add(1)

		sum, n, err := hasher.FullHash(fd.Path, fd.Size, newHash)
		if err != nil {
			if warn != nil {
				warn(fd.Path, "full hash: "+err.Error())
			}
			progress.Warnings.Add(1)
			return hasher.FullResult{}, false
		}
		progress.BytesRead.Add(n)
		progress.FullHashed.Add(1)

		if c != nil {
			_ = c.PutFull(ctx, fd.Path, fd.Size, fd.MTime.Unix(), sum, now)
		}
		return hasher.FullResult{Descriptor: fd, Sum: sum, Algo: algo}, true
	})
}

// runWorkerPool spawns `workers` goroutines, each pulling a T from in,
// applying fn, and forwarding a successful R to out. out is closed once
// every worker has returned.
func runWorkerPool[T, R any](ctx context.Context, workers int, in <-chan T, out chan<- R, fn func(T) (R, bool)) {
	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-in:
					if !ok {
						return
					}
					result, keep := fn(item)
					if !keep {
						continue
					}
					if !sendGeneric(ctx, out, result) {
						return
					}
				}
			}
		}()
	}
	go func() {
		for i := 0; i < workers; i++ {
			<-done
		}
		close(out)
	}()
}

func sendGeneric[R any](ctx context.Context, out chan<- R, v R) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
