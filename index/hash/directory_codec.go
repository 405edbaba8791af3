package hash

import (
	"encoding/binary"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// directory page layout (spec §6):
//
//	page_id: i32, lsn: i32, global_depth: u32,
//	local_depths: u8[1<<MAX_DEPTH], bucket_page_ids: i32[1<<MAX_DEPTH]
const (
	dirOffPageID  = 0
	dirOffLSN     = 4
	dirOffDepth   = 8
	dirOffLocal   = 12
	dirOffBuckets = dirOffLocal + dirSlotCount
)

// LoadDirectory decodes a Directory from pg's raw bytes.
func LoadDirectory(pg *page.Page) *Directory {
	data := pg.Data()[:]
	d := &Directory{
		pageID:      page.ID(int32(binary.LittleEndian.Uint32(data[dirOffPageID:]))),
		globalDepth: binary.LittleEndian.Uint32(data[dirOffDepth:]),
	}
	copy(d.localDepths[:], data[dirOffLocal:dirOffLocal+dirSlotCount])
	for i := 0; i < dirSlotCount; i++ {
		off := dirOffBuckets + i*4
		d.bucketPageID[i] = page.ID(int32(binary.LittleEndian.Uint32(data[off:])))
	}
	return d
}

// Store encodes d's full state back into pg's raw bytes.
func (d *Directory) Store(pg *page.Page) {
	data := pg.Data()[:]
	binary.LittleEndian.PutUint32(data[dirOffPageID:], uint32(d.pageID))
	binary.LittleEndian.PutUint32(data[dirOffLSN:], 0)
	binary.LittleEndian.PutUint32(data[dirOffDepth:], d.globalDepth)
	copy(data[dirOffLocal:dirOffLocal+dirSlotCount], d.localDepths[:])
	for i := 0; i < dirSlotCount; i++ {
		off := dirOffBuckets + i*4
		binary.LittleEndian.PutUint32(data[off:], uint32(d.bucketPageID[i]))
	}
}
