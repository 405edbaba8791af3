package heap

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/dbstorage-core/storage/buffer"
	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// TableHeap is the minimal surface the lock manager and catalog
// consume (spec §2 row H): insert, point-read, delete and update of
// tuples addressed by RID.
type TableHeap interface {
	InsertTuple(data []byte) (page.RID, error)
	GetTuple(rid page.RID) ([]byte, error)
	MarkDelete(rid page.RID) error
	UpdateTuple(rid page.RID, data []byte) error
	FirstPageID() page.ID
}

// PageHeap is a real, minimal slotted-page TableHeap over a buffer
// pool: a singly linked chain of heap pages, each holding a slot
// directory plus packed tuple bytes (table_page.go).
type PageHeap struct {
	id   uuid.UUID
	pool buffer.Pool

	mu          sync.Mutex
	firstPageID page.ID
	lastPageID  page.ID
}

// NewPageHeap allocates the first heap page and returns a table heap
// identified by a fresh UUID, the way the catalog identifies tables.
func NewPageHeap(pool buffer.Pool) (*PageHeap, error) {
	pg, err := pool.NewPage()
	if err != nil {
		return nil, errors.Wrap(err, "heap: allocate first page")
	}
	if pg == nil {
		return nil, errors.New("heap: buffer pool exhausted allocating first page")
	}
	initHeapPage(pg)
	id := pg.ID()
	pool.UnpinPage(id, true)

	return &PageHeap{
		id:          uuid.New(),
		pool:        pool,
		firstPageID: id,
		lastPageID:  id,
	}, nil
}

// ID returns the heap's identity, the way the catalog would key its
// table metadata.
func (h *PageHeap) ID() uuid.UUID { return h.id }

// FirstPageID returns the id of the heap's first page.
func (h *PageHeap) FirstPageID() page.ID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.firstPageID
}

// InsertTuple appends data to the last heap page, allocating a new
// page and linking it into the chain if the last page is full.
func (h *PageHeap) InsertTuple(data []byte) (page.RID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pg, err := h.pool.FetchPage(h.lastPageID)
	if err != nil {
		return page.RID{}, errors.Wrap(err, "heap: fetch last page")
	}
	pg.WLatch()
	slot, ok := insertIntoPage(pg, data)
	if ok {
		pg.WUnlatch()
		h.pool.UnpinPage(h.lastPageID, true)
		return page.RID{PageID: h.lastPageID, Slot: slot}, nil
	}
	pg.WUnlatch()
	h.pool.UnpinPage(h.lastPageID, false)

	newPage, err := h.pool.NewPage()
	if err != nil {
		return page.RID{}, errors.Wrap(err, "heap: allocate next page")
	}
	if newPage == nil {
		return page.RID{}, errors.New("heap: buffer pool exhausted extending heap")
	}
	initHeapPage(newPage)
	newID := newPage.ID()

	old, err := h.pool.FetchPage(h.lastPageID)
	if err != nil {
		h.pool.UnpinPage(newID, true)
		return page.RID{}, errors.Wrap(err, "heap: re-fetch last page to link next")
	}
	old.WLatch()
	setHeapNextPageID(old, newID)
	old.WUnlatch()
	h.pool.UnpinPage(h.lastPageID, true)

	slot, ok = insertIntoPage(newPage, data)
	if !ok {
		h.pool.UnpinPage(newID, true)
		return page.RID{}, errors.New("heap: tuple too large for an empty page")
	}
	h.pool.UnpinPage(newID, true)
	h.lastPageID = newID
	return page.RID{PageID: newID, Slot: slot}, nil
}

// GetTuple returns the bytes stored at rid. Errors if the slot was
// deleted or never existed.
func (h *PageHeap) GetTuple(rid page.RID) ([]byte, error) {
	pg, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return nil, errors.Wrapf(err, "heap: fetch page %d", rid.PageID)
	}
	pg.RLatch()
	data, ok := readFromPage(pg, rid.Slot)
	pg.RUnlatch()
	h.pool.UnpinPage(rid.PageID, false)
	if !ok {
		return nil, errors.Errorf("heap: no live tuple at %+v", rid)
	}
	return data, nil
}

// MarkDelete tombstones rid's slot.
func (h *PageHeap) MarkDelete(rid page.RID) error {
	pg, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return errors.Wrapf(err, "heap: fetch page %d", rid.PageID)
	}
	pg.WLatch()
	ok := tombstoneInPage(pg, rid.Slot)
	pg.WUnlatch()
	h.pool.UnpinPage(rid.PageID, ok)
	if !ok {
		return errors.Errorf("heap: no live tuple at %+v", rid)
	}
	return nil
}

// UpdateTuple overwrites rid's tuple in place if data fits in the
// slot's existing reservation; callers needing growth should delete
// and re-insert to get a fresh RID.
func (h *PageHeap) UpdateTuple(rid page.RID, data []byte) error {
	pg, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return errors.Wrapf(err, "heap: fetch page %d", rid.PageID)
	}
	pg.WLatch()
	ok := updateInPage(pg, rid.Slot, data)
	pg.WUnlatch()
	h.pool.UnpinPage(rid.PageID, ok)
	if !ok {
		return errors.Errorf("heap: cannot update %+v in place", rid)
	}
	return nil
}

var _ TableHeap = (*PageHeap)(nil)
