package hasher

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
)

// Algorithm names accepted by the hash_algorithm config field.
const (
	AlgoSHA256 = "sha256"
	AlgoSHA1   = "sha1"
	AlgoSHA512 = "sha512"
)

// NewHashFactory resolves a configured algorithm name to a HashFactory.
// sha256 is the default when name is empty.
func NewHashFactory(name string) (HashFactory, error) {
	switch name {
	case "", AlgoSHA256:
		return sha256.New, nil
	case AlgoSHA1:
		return sha1.New, nil
	case AlgoSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", name)
	}
}
