// Package buffer implements the buffer pool: a single-instance page
// cache (spec §4.B) and a page-id-sharded parallel pool built from many
// instances (spec §4.C).
package buffer

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/zhukovaskychina/dbstorage-core/logging"
	"github.com/zhukovaskychina/dbstorage-core/storage/disk"
	"github.com/zhukovaskychina/dbstorage-core/storage/page"
	"github.com/zhukovaskychina/dbstorage-core/storage/replacer"
)

// Instance is one shard of the buffer pool: a fixed frame array, a page
// table, a free list, and an LRU replacer, all serialized behind one
// coarse latch (spec §4.B). Page ids handed out by NewPage are strided:
// next = base + k*stride, so instance i only ever owns page ids
// congruent to i modulo stride.
type Instance struct {
	mu sync.Mutex // coarse pool latch, entry-to-return on every public method

	poolSize int
	frames   []*page.Page
	pageTbl  map[page.ID]page.FrameID
	freeList []page.FrameID
	lru      *replacer.LRU
	disk     disk.Manager

	base       int32
	stride     int32
	nextOffset atomic.Int32
}

// NewInstance builds one buffer pool instance of poolSize frames,
// backed by disk. base and stride implement the page-id striding
// described in spec §4.B; a non-sharded pool passes base=0, stride=1.
func NewInstance(poolSize int, disk disk.Manager, base, stride int32) *Instance {
	frames := make([]*page.Page, poolSize)
	freeList := make([]page.FrameID, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = page.NewPage()
		freeList[i] = page.FrameID(i)
	}
	return &Instance{
		poolSize: poolSize,
		frames:   frames,
		pageTbl:  make(map[page.ID]page.FrameID, poolSize),
		freeList: freeList,
		lru:      replacer.NewLRU(poolSize),
		disk:     disk,
		base:     base,
		stride:   stride,
	}
}

// Size returns the instance's frame count.
func (bp *Instance) Size() int { return bp.poolSize }

// popFreeFrame pops a frame id from the free list, or falls back to the
// replacer's victim. Returns ok=false if neither has one.
func (bp *Instance) popFreeFrame() (page.FrameID, bool) {
	if n := len(bp.freeList); n > 0 {
		id := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return id, true
	}
	return bp.lru.Victim()
}

// evict prepares frameID to receive a new page: flushing it if dirty
// and removing its old page-table entry, if it held one.
func (bp *Instance) evict(frameID page.FrameID) error {
	fr := bp.frames[frameID]
	if fr.ID() == page.InvalidID {
		return nil
	}
	if fr.IsDirty() {
		if err := bp.disk.WritePage(fr.ID(), fr.Data()); err != nil {
			return errors.Wrapf(err, "buffer: flush victim page %d", fr.ID())
		}
	}
	delete(bp.pageTbl, fr.ID())
	fr.Reset()
	return nil
}

// allocID returns this instance's next page id in its congruence class.
func (bp *Instance) allocID() page.ID {
	k := bp.nextOffset.Inc() - 1
	return page.ID(bp.base + k*bp.stride)
}

// NewPage allocates a fresh page: victimizes a frame (free list first,
// then the replacer), flushing it if dirty, then installs a brand new
// zeroed page pinned once. Returns nil if no frame is available.
func (bp *Instance) NewPage() (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.popFreeFrame()
	if !ok {
		return nil, nil
	}
	if err := bp.evict(frameID); err != nil {
		return nil, err
	}

	id := bp.allocID()
	if err := bp.disk.AllocatePage(id); err != nil {
		return nil, errors.Wrapf(err, "buffer: allocate page %d", id)
	}

	fr := bp.frames[frameID]
	fr.SetID(id)
	fr.IncPin()
	bp.pageTbl[id] = frameID
	bp.lru.Pin(frameID)

	logging.Logger.Debugf("buffer: new page %d in frame %d", id, frameID)
	return fr, nil
}

// FetchPage returns the page for id, pinning it. If not resident, a
// frame is victimized and the page is read from disk.
func (bp *Instance) FetchPage(id page.ID) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frameID, ok := bp.pageTbl[id]; ok {
		fr := bp.frames[frameID]
		fr.IncPin()
		bp.lru.Pin(frameID)
		return fr, nil
	}

	frameID, ok := bp.popFreeFrame()
	if !ok {
		return nil, nil
	}
	if err := bp.evict(frameID); err != nil {
		return nil, err
	}

	fr := bp.frames[frameID]
	fr.SetID(id)
	if err := bp.disk.ReadPage(id, fr.Data()); err != nil {
		fr.Reset()
		bp.freeList = append(bp.freeList, frameID)
		return nil, errors.Wrapf(err, "buffer: fetch page %d", id)
	}
	fr.IncPin()
	bp.pageTbl[id] = frameID
	bp.lru.Pin(frameID)

	logging.Logger.Debugf("buffer: fetched page %d into frame %d", id, frameID)
	return fr, nil
}

// UnpinPage decrements id's pin count and ORs in isDirty. Once the pin
// count reaches zero the frame becomes eligible for eviction. Returns
// false if id isn't resident or was already unpinned to zero.
func (bp *Instance) UnpinPage(id page.ID, isDirty bool) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTbl[id]
	if !ok {
		return false
	}
	fr := bp.frames[frameID]
	if fr.PinCount() <= 0 {
		return false
	}
	if isDirty {
		fr.MarkDirty()
	}
	if fr.DecPin() == 0 {
		bp.lru.Unpin(frameID)
	}
	return true
}

// FlushPage writes id's current bytes to disk and clears its dirty
// flag. False if id isn't resident.
func (bp *Instance) FlushPage(id page.ID) (bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushLocked(id)
}

func (bp *Instance) flushLocked(id page.ID) (bool, error) {
	if id == page.InvalidID {
		return false, nil
	}
	frameID, ok := bp.pageTbl[id]
	if !ok {
		return false, nil
	}
	fr := bp.frames[frameID]
	if err := bp.disk.WritePage(id, fr.Data()); err != nil {
		return false, errors.Wrapf(err, "buffer: flush page %d", id)
	}
	fr.ClearDirty()
	return true, nil
}

// FlushAllPages flushes every resident page.
func (bp *Instance) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for id := range bp.pageTbl {
		if _, err := bp.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage evicts id from the pool entirely. Not-resident is treated
// as success. A pinned page cannot be deleted.
func (bp *Instance) DeletePage(id page.ID) (bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTbl[id]
	if !ok {
		return true, nil
	}
	fr := bp.frames[frameID]
	if fr.PinCount() > 0 {
		return false, nil
	}
	if fr.IsDirty() {
		if err := bp.disk.WritePage(id, fr.Data()); err != nil {
			return false, errors.Wrapf(err, "buffer: flush on delete page %d", id)
		}
	}
	if err := bp.disk.DeallocatePage(id); err != nil {
		return false, errors.Wrapf(err, "buffer: deallocate page %d", id)
	}
	delete(bp.pageTbl, id)
	bp.lru.Pin(frameID) // ensure it's not sitting in the eviction set
	fr.Reset()
	bp.freeList = append(bp.freeList, frameID)
	return true, nil
}
