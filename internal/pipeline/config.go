package pipeline

import (
	"runtime"

	"github.com/duplifind/duplifind/internal/hasher"
)

// Config tunes the pipeline's traversal, sampling, and concurrency.
type Config struct {
	Roots   []string
	Include []string
	Exclude []string
	// MinSize floors scanned files by size. nil defaults to 1 byte; a
	// non-nil pointer is passed through verbatim, including an explicit 0
	// to admit empty files.
	MinSize        *int64
	FollowSymlinks bool

	WalkWorkers  int
	QuickWorkers int
	FullWorkers  int

	SampleSize    int64
	HashAlgorithm string

	CacheEnabled bool
}

// DefaultConfig returns a Config with every tunable at its spec-mandated
// default: a fixed pool of max(2, cores-1) workers for each of the
// quick-hash and full-hash stages, 4 directory-walk workers, a 4096-byte
// quick-hash sample, and SHA-256 full hashing.
func DefaultConfig() Config {
	return Config{
		WalkWorkers:   4,
		QuickWorkers:  defaultPoolSize(),
		FullWorkers:   defaultPoolSize(),
		SampleSize:    hasher.DefaultSampleSize,
		HashAlgorithm: hasher.AlgoSHA256,
		CacheEnabled:  true,
	}
}

func defaultPoolSize() int {
	n := runtime.NumCPU() - 1
	if n < 2 {
		return 2
	}
	return n
}

func (c Config) walkWorkers() int {
	if c.WalkWorkers > 0 {
		return c.WalkWorkers
	}
	return 4
}

func (c Config) quickWorkers() int {
	if c.QuickWorkers > 0 {
		return c.QuickWorkers
	}
	return defaultPoolSize()
}

func (c Config) fullWorkers() int {
	if c.FullWorkers > 0 {
		return c.FullWorkers
	}
	return defaultPoolSize()
}

func (c Config) sampleSize() int64 {
	if c.SampleSize > 0 {
		return c.SampleSize
	}
	return hasher.DefaultSampleSize
}

func (c Config) hashAlgorithm() string {
	if c.HashAlgorithm != "" {
		return c.HashAlgorithm
	}
	return hasher.AlgoSHA256
}
