package hash

import (
	"encoding/binary"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// LoadBucket decodes a Bucket from pg's raw bytes, per the bucket page
// layout in spec §6: occupied bitmap, readable bitmap, then the
// (K,V) slot array.
func LoadBucket(pg *page.Page, keyWidth int, newKey func([]byte) Key) *Bucket {
	b := NewBucket(keyWidth, newKey)
	data := pg.Data()[:]

	nBitmap := bitmapBytes(b.capacity)
	copy(b.occupied, data[:nBitmap])
	copy(b.readable, data[nBitmap:2*nBitmap])

	off := 2 * nBitmap
	width := slotSize(keyWidth)
	for i := 0; i < b.capacity; i++ {
		rec := data[off+i*width : off+(i+1)*width]
		b.slots[i] = entry{
			key: newKey(rec[:keyWidth]),
			value: page.RID{
				PageID: page.ID(int32(binary.LittleEndian.Uint32(rec[keyWidth : keyWidth+4]))),
				Slot:   binary.LittleEndian.Uint32(rec[keyWidth+4 : keyWidth+8]),
			},
		}
	}
	return b
}

// Store encodes b's full state back into pg's raw bytes.
func (b *Bucket) Store(pg *page.Page) {
	data := pg.Data()[:]

	nBitmap := bitmapBytes(b.capacity)
	copy(data[:nBitmap], b.occupied)
	copy(data[nBitmap:2*nBitmap], b.readable)

	off := 2 * nBitmap
	width := slotSize(b.keyWidth)
	for i := 0; i < b.capacity; i++ {
		rec := data[off+i*width : off+(i+1)*width]
		kb := b.slots[i].key
		if kb == nil {
			for j := range rec {
				rec[j] = 0
			}
			continue
		}
		copy(rec[:b.keyWidth], kb.Bytes())
		binary.LittleEndian.PutUint32(rec[b.keyWidth:b.keyWidth+4], uint32(b.slots[i].value.PageID))
		binary.LittleEndian.PutUint32(rec[b.keyWidth+4:b.keyWidth+8], b.slots[i].value.Slot)
	}
}
