// Package util holds small, widely shared helpers with no storage-core
// dependencies of their own.
package util

import (
	"github.com/OneOfOne/xxhash"
)

// HashCode returns the xxHash64 fingerprint of key.
func HashCode(key []byte) uint64 {
	h := xxhash.New64()
	h.Write(key)
	return h.Sum64()
}
