package hash

import "github.com/zhukovaskychina/dbstorage-core/storage/page"

// bucketHeaderBytes is the space the two bitmaps take for Capacity
// slots, each bitmap needing ceil(Capacity/8) bytes (spec §6 layout).
func bitmapBytes(capacity int) int {
	return (capacity + 7) / 8
}

// slotSize is the encoded size of one (key, value) slot: a fixed-width
// key plus one RID value (4-byte page id + 4-byte slot number).
func slotSize(keyWidth int) int {
	return keyWidth + 4 + 4
}

// Capacity returns how many (key, value) slots of keyWidth-byte keys
// fit in one page alongside the two bitmaps, per spec §6's bucket
// layout: occupied_bitmap, readable_bitmap, array[C] of (K,V).
func Capacity(keyWidth int) int {
	// Solve C such that 2*ceil(C/8) + C*slotSize <= page.Size, rounding
	// down; bitmaps grow by whole bytes so this slightly underestimates
	// at byte boundaries, which is conservative and safe.
	c := page.Size / (slotSize(keyWidth) + 1)
	for c > 0 && 2*bitmapBytes(c)+c*slotSize(keyWidth) > page.Size {
		c--
	}
	return c
}

// entry is one (key, value) slot's decoded form.
type entry struct {
	key   Key
	value page.RID
}

// Bucket is a fixed-capacity slotted array of (key, value) pairs with
// occupied/readable bitmaps (spec §4.D). It holds no latch of its own —
// callers hold the owning page's content latch for the duration of
// every call, per the extendible hash table's latching protocol.
//
// newKey decodes a slot's raw key bytes back into a Key of the right
// concrete width; it is supplied by the caller because Bucket itself is
// width-agnostic.
type Bucket struct {
	capacity int
	keyWidth int
	newKey   func([]byte) Key

	occupied []byte
	readable []byte
	slots    []entry
}

// NewBucket builds an empty bucket sized for keyWidth-byte keys.
func NewBucket(keyWidth int, newKey func([]byte) Key) *Bucket {
	cap := Capacity(keyWidth)
	return &Bucket{
		capacity: cap,
		keyWidth: keyWidth,
		newKey:   newKey,
		occupied: make([]byte, bitmapBytes(cap)),
		readable: make([]byte, bitmapBytes(cap)),
		slots:    make([]entry, cap),
	}
}

func bitSet(bitmap []byte, idx int) bool {
	return bitmap[idx/8]&(1<<(uint(idx)%8)) != 0
}

func bitOn(bitmap []byte, idx int) {
	bitmap[idx/8] |= 1 << (uint(idx) % 8)
}

func bitOff(bitmap []byte, idx int) {
	bitmap[idx/8] &^= 1 << (uint(idx) % 8)
}

// Capacity returns the bucket's fixed slot count.
func (b *Bucket) Capacity() int { return b.capacity }

// IsOccupied reports whether slot idx has ever held a value, including
// tombstoned (removed) slots.
func (b *Bucket) IsOccupied(idx int) bool { return bitSet(b.occupied, idx) }

// IsReadable reports whether slot idx currently holds a live value.
func (b *Bucket) IsReadable(idx int) bool { return bitSet(b.readable, idx) }

// SetOccupied marks slot idx as occupied.
func (b *Bucket) SetOccupied(idx int) { bitOn(b.occupied, idx) }

// SetReadable marks slot idx as readable.
func (b *Bucket) SetReadable(idx int) { bitOn(b.readable, idx) }

// KeyAt returns the key stored at idx, regardless of readability.
func (b *Bucket) KeyAt(idx int) Key { return b.slots[idx].key }

// ValueAt returns the value stored at idx, regardless of readability.
func (b *Bucket) ValueAt(idx int) page.RID { return b.slots[idx].value }

// RemoveAt tombstones slot idx: clears readable, leaves occupied set.
func (b *Bucket) RemoveAt(idx int) { bitOff(b.readable, idx) }

// NumReadable returns the number of currently live slots.
func (b *Bucket) NumReadable() int {
	n := 0
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			n++
		}
	}
	return n
}

// IsFull reports whether every slot is readable.
func (b *Bucket) IsFull() bool { return b.NumReadable() == b.capacity }

// IsEmpty reports whether no slot is readable.
func (b *Bucket) IsEmpty() bool { return b.NumReadable() == 0 }

// GetValue appends the value of every readable slot whose key equals
// key, per cmp, and reports whether any matched.
func (b *Bucket) GetValue(key Key, cmp Comparator, results *[]page.RID) bool {
	found := false
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmp(key, b.slots[i].key) {
			*results = append(*results, b.slots[i].value)
			found = true
		}
	}
	return found
}

// Insert places (key, value) into the first non-readable slot. Rejects
// a duplicate (key, value) pair already readable, and rejects if the
// bucket has no free slot.
func (b *Bucket) Insert(key Key, value page.RID, cmp Comparator) bool {
	available := -1
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			if cmp(key, b.slots[i].key) && b.slots[i].value == value {
				return false
			}
		} else if available == -1 {
			available = i
		}
	}
	if available == -1 {
		return false
	}
	b.slots[available] = entry{key: key, value: value}
	b.SetOccupied(available)
	b.SetReadable(available)
	return true
}

// Remove tombstones the first readable slot matching both key and
// value. Reports whether a match was found.
func (b *Bucket) Remove(key Key, value page.RID, cmp Comparator) bool {
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmp(key, b.slots[i].key) && b.slots[i].value == value {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}

// GetArrayCopy returns a dense copy of every currently readable
// (key, value) pair, for use while splitting.
func (b *Bucket) GetArrayCopy() []entry {
	out := make([]entry, 0, b.NumReadable())
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			out = append(out, b.slots[i])
		}
	}
	return out
}

// Reset clears both bitmaps and the slot array, leaving an empty
// bucket of the same capacity.
func (b *Bucket) Reset() {
	for i := range b.occupied {
		b.occupied[i] = 0
	}
	for i := range b.readable {
		b.readable[i] = 0
	}
	for i := range b.slots {
		b.slots[i] = entry{}
	}
}
