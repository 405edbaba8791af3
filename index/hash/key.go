// Package hash implements the disk-resident extendible hash index
// (spec §4.D, §4.E, §4.F): bucket pages, directory pages, and the table
// that ties them together through a buffer pool.
//
// Keys are a small closed set of fixed-width byte keys (spec Design
// Note "Templated key/value widths"), mirroring the original's
// GenericKey<4/8/16/32/64> plus a plain integer key used in tests.
// Values are always RIDs, per spec §6.
package hash

import "encoding/binary"

// Key is any fixed-width key the hash table can index.
type Key interface {
	Bytes() []byte
}

// Key4 is a 4-byte fixed-width key.
type Key4 [4]byte

// Bytes returns the key's raw bytes.
func (k Key4) Bytes() []byte { return k[:] }

// Key8 is an 8-byte fixed-width key.
type Key8 [8]byte

// Bytes returns the key's raw bytes.
func (k Key8) Bytes() []byte { return k[:] }

// Key16 is a 16-byte fixed-width key.
type Key16 [16]byte

// Bytes returns the key's raw bytes.
func (k Key16) Bytes() []byte { return k[:] }

// Key32 is a 32-byte fixed-width key.
type Key32 [32]byte

// Bytes returns the key's raw bytes.
func (k Key32) Bytes() []byte { return k[:] }

// Key64 is a 64-byte fixed-width key.
type Key64 [64]byte

// Bytes returns the key's raw bytes.
func (k Key64) Bytes() []byte { return k[:] }

// IntKey is a plain 4-byte signed integer key, used the way the
// original uses a bare `int` key in its unit tests.
type IntKey int32

// Bytes returns the key's little-endian byte representation.
func (k IntKey) Bytes() []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(k))
	return b[:]
}

// NewKey4FromBytes truncates or zero-pads src into a Key4.
func NewKey4FromBytes(src []byte) Key4 {
	var k Key4
	copy(k[:], src)
	return k
}

// NewKey8FromBytes truncates or zero-pads src into a Key8.
func NewKey8FromBytes(src []byte) Key8 {
	var k Key8
	copy(k[:], src)
	return k
}

// NewKey16FromBytes truncates or zero-pads src into a Key16.
func NewKey16FromBytes(src []byte) Key16 {
	var k Key16
	copy(k[:], src)
	return k
}

// NewKey32FromBytes truncates or zero-pads src into a Key32.
func NewKey32FromBytes(src []byte) Key32 {
	var k Key32
	copy(k[:], src)
	return k
}

// NewKey64FromBytes truncates or zero-pads src into a Key64.
func NewKey64FromBytes(src []byte) Key64 {
	var k Key64
	copy(k[:], src)
	return k
}
