package hash

import "github.com/zhukovaskychina/dbstorage-core/util"

// Comparator reports whether two keys are equal. The hash table and
// bucket page never need ordering, only equality (spec §4.D).
type Comparator func(a, b Key) bool

// BytesEqual is the default Comparator: byte-for-byte equality of the
// keys' raw representations.
func BytesEqual(a, b Key) bool {
	ab, bb := a.Bytes(), b.Bytes()
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}

// HashFunction computes a 64-bit fingerprint for a key. The original
// BusTub parameterizes ExtendibleHashTable over a HashFunction object
// rather than a bare function so tests can substitute a deterministic
// stub (spec_full.md "Supplemented features").
type HashFunction interface {
	GetHash(key Key) uint64
}

// XXHashFunction is the production HashFunction, grounded on the
// teacher codebase's own util.HashCode, which wraps OneOfOne/xxhash.
type XXHashFunction struct{}

// GetHash returns the xxHash64 fingerprint of key's bytes.
func (XXHashFunction) GetHash(key Key) uint64 {
	return util.HashCode(key.Bytes())
}

// Hash downcasts a HashFunction's 64-bit fingerprint to the 32 bits
// extendible hashing operates on (spec §4.F).
func Hash(key Key, hf HashFunction) uint32 {
	return uint32(hf.GetHash(key))
}
