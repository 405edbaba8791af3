// Package heap provides the minimal table heap the lock manager and
// catalog consume (spec §2 row H, "specified only as consumed
// contract"). It supplements that contract with a real, if minimal,
// slotted-page implementation over storage/buffer so RIDs handed to
// the lock manager and hash index come from somewhere concrete.
package heap

import (
	"encoding/binary"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// Slotted page layout, following the same fixed-offset little-endian
// encoding convention as the hash index's directory/bucket codecs:
//
//	num_slots: i32, free_space_offset: i32, next_page_id: i32,
//	slot_directory: (tuple_offset: i32, tuple_length: i32)[num_slots],
//	tuple bytes, packed from the end of the page backward.
//
// tuple_length == -1 marks a tombstoned (deleted) slot; its bytes are
// left in place and never reclaimed, matching the bucket page's
// occupied/readable tombstone discipline.
const (
	heapOffNumSlots  = 0
	heapOffFreeSpace = 4
	heapOffNextPage  = 8
	heapHeaderSize   = 12
	heapSlotSize     = 8
)

const tombstoneLength = -1

func slotDirOffset(i uint32) int { return heapHeaderSize + int(i)*heapSlotSize }

// initHeapPage resets pg into an empty slotted page with no next page.
func initHeapPage(pg *page.Page) {
	data := pg.Data()[:]
	for i := range data {
		data[i] = 0
	}
	binary.LittleEndian.PutUint32(data[heapOffNumSlots:], 0)
	binary.LittleEndian.PutUint32(data[heapOffFreeSpace:], uint32(page.Size))
	invalidID := int32(page.InvalidID)
	binary.LittleEndian.PutUint32(data[heapOffNextPage:], uint32(invalidID))
}

func heapNumSlots(pg *page.Page) uint32 {
	return binary.LittleEndian.Uint32(pg.Data()[heapOffNumSlots:])
}

func heapFreeSpaceOffset(pg *page.Page) uint32 {
	return binary.LittleEndian.Uint32(pg.Data()[heapOffFreeSpace:])
}

func heapNextPageID(pg *page.Page) page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(pg.Data()[heapOffNextPage:])))
}

func setHeapNextPageID(pg *page.Page, id page.ID) {
	binary.LittleEndian.PutUint32(pg.Data()[heapOffNextPage:], uint32(int32(id)))
}

func slotAt(pg *page.Page, i uint32) (offset uint32, length int32) {
	data := pg.Data()[:]
	off := slotDirOffset(i)
	offset = binary.LittleEndian.Uint32(data[off:])
	length = int32(binary.LittleEndian.Uint32(data[off+4:]))
	return
}

func setSlot(pg *page.Page, i uint32, offset uint32, length int32) {
	data := pg.Data()[:]
	off := slotDirOffset(i)
	binary.LittleEndian.PutUint32(data[off:], offset)
	binary.LittleEndian.PutUint32(data[off+4:], uint32(length))
}

// heapFreeBytes returns how much unused space remains between the
// slot directory and the tuple area for numSlots+1 slots.
func heapFreeBytes(pg *page.Page, forSlots uint32) int {
	used := heapHeaderSize + int(forSlots)*heapSlotSize
	return int(heapFreeSpaceOffset(pg)) - used
}

// insertIntoPage appends data as a new slot if there is room, and
// returns the new slot index. Returns false if the page is full.
func insertIntoPage(pg *page.Page, data []byte) (uint32, bool) {
	n := heapNumSlots(pg)
	if heapFreeBytes(pg, n+1) < len(data) {
		return 0, false
	}
	newOffset := heapFreeSpaceOffset(pg) - uint32(len(data))
	copy(pg.Data()[newOffset:newOffset+uint32(len(data))], data)
	setSlot(pg, n, newOffset, int32(len(data)))
	binary.LittleEndian.PutUint32(pg.Data()[heapOffNumSlots:], n+1)
	binary.LittleEndian.PutUint32(pg.Data()[heapOffFreeSpace:], newOffset)
	return n, true
}

// readFromPage returns slot i's bytes and whether it is live.
func readFromPage(pg *page.Page, i uint32) ([]byte, bool) {
	if i >= heapNumSlots(pg) {
		return nil, false
	}
	offset, length := slotAt(pg, i)
	if length == tombstoneLength {
		return nil, false
	}
	out := make([]byte, length)
	copy(out, pg.Data()[offset:offset+uint32(length)])
	return out, true
}

// tombstoneInPage marks slot i deleted. Reports whether it existed and
// was live.
func tombstoneInPage(pg *page.Page, i uint32) bool {
	if i >= heapNumSlots(pg) {
		return false
	}
	offset, length := slotAt(pg, i)
	if length == tombstoneLength {
		return false
	}
	setSlot(pg, i, offset, tombstoneLength)
	return true
}

// updateInPage overwrites slot i's bytes in place when the new data is
// no larger than the old (no compaction); the caller falls back to
// delete+reinsert when it does not fit.
func updateInPage(pg *page.Page, i uint32, data []byte) bool {
	if i >= heapNumSlots(pg) {
		return false
	}
	offset, length := slotAt(pg, i)
	if length == tombstoneLength || int(length) < len(data) {
		return false
	}
	copy(pg.Data()[offset:offset+uint32(len(data))], data)
	setSlot(pg, i, offset, int32(len(data)))
	return true
}
