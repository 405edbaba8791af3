// Package replacer implements the buffer pool's frame replacement
// policy: an LRU replacer over unpinned frames (spec §4.A).
package replacer

import (
	"container/list"
	"sync"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// LRU tracks unpinned frames with MRU at the front and LRU at the tail,
// and picks a victim from the tail. Capacity-bounded: Unpin past
// capacity is a no-op, matching the buffer pool's frame count.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = MRU, back = LRU, values are page.FrameID
	index    map[page.FrameID]*list.Element
}

// NewLRU builds an LRU replacer capable of tracking up to capacity
// frames at once.
func NewLRU(capacity int) *LRU {
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[page.FrameID]*list.Element, capacity),
	}
}

// Victim removes and returns the least-recently-unpinned frame id. The
// second return value is false when the replacer is empty.
func (r *LRU) Victim() (page.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	back := r.order.Back()
	if back == nil {
		return 0, false
	}
	frameID := back.Value.(page.FrameID)
	r.order.Remove(back)
	delete(r.index, frameID)
	return frameID, true
}

// Pin removes frameID from the eviction set, signaling it is now in use
// and ineligible for eviction. No-op if it wasn't present.
func (r *LRU) Pin(frameID page.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.index[frameID]; ok {
		r.order.Remove(el)
		delete(r.index, frameID)
	}
}

// Unpin records frameID as eligible for eviction, most-recently-used.
// No-op if already present or if the replacer is already at capacity.
func (r *LRU) Unpin(frameID page.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[frameID]; ok {
		return
	}
	if r.order.Len() >= r.capacity {
		return
	}
	r.index[frameID] = r.order.PushFront(frameID)
}

// Size returns the number of frames currently eligible for eviction.
func (r *LRU) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
