package hash

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/dbstorage-core/logging"
	"github.com/zhukovaskychina/dbstorage-core/storage/buffer"
	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// Table is a disk-resident extendible hash index (spec §4.F): a lazily
// allocated directory page, a buffer pool handle, a key comparator, and
// a hash function, guarded by a table-level readers-writer latch plus
// per-page latches on the directory/bucket pages it touches.
type Table struct {
	pool     buffer.Pool
	cmp      Comparator
	hashFn   HashFunction
	keyWidth int
	newKey   func([]byte) Key

	tableLatch sync.RWMutex

	dirMu    sync.Mutex
	dirPagID page.ID
}

// NewTable builds an extendible hash table over pool for fixed-width
// keys of keyWidth bytes. newKey decodes a raw slot's key bytes back
// into a Key of that width.
func NewTable(pool buffer.Pool, keyWidth int, newKey func([]byte) Key, cmp Comparator, hashFn HashFunction) *Table {
	return &Table{
		pool:     pool,
		cmp:      cmp,
		hashFn:   hashFn,
		keyWidth: keyWidth,
		newKey:   newKey,
		dirPagID: page.InvalidID,
	}
}

// Hash downcasts key's 64-bit fingerprint to 32 bits (spec §4.F).
func (t *Table) Hash(key Key) uint32 { return Hash(key, t.hashFn) }

func (t *Table) keyToDirectoryIndex(key Key, dir *Directory) uint32 {
	return t.Hash(key) & dir.GetGlobalDepthMask()
}

func (t *Table) keyToPageID(key Key, dir *Directory) page.ID {
	return dir.GetBucketPageId(t.keyToDirectoryIndex(key, dir))
}

// fetchDirectory lazily allocates the directory page (and its first
// bucket) on first use, then fetches and decodes it. The returned page
// is pinned; callers must Unpin it.
func (t *Table) fetchDirectory() (*Directory, *page.Page, error) {
	t.dirMu.Lock()
	if t.dirPagID == page.InvalidID {
		dirPage, err := t.pool.NewPage()
		if err != nil {
			t.dirMu.Unlock()
			return nil, nil, errors.Wrap(err, "hash: allocate directory page")
		}
		if dirPage == nil {
			t.dirMu.Unlock()
			return nil, nil, errors.New("hash: buffer pool exhausted allocating directory page")
		}
		bucketPage, err := t.pool.NewPage()
		if err != nil || bucketPage == nil {
			t.dirMu.Unlock()
			return nil, nil, errors.Wrap(err, "hash: allocate first bucket page")
		}

		dir := NewDirectory()
		dir.SetPageID(dirPage.ID())
		dir.SetBucketPageId(0, bucketPage.ID())
		dir.Store(dirPage)
		NewBucket(t.keyWidth, t.newKey).Store(bucketPage)

		t.pool.UnpinPage(dirPage.ID(), true)
		t.pool.UnpinPage(bucketPage.ID(), true)
		t.dirPagID = dirPage.ID()

		logging.Logger.Debugf("hash: lazily created directory page %d, first bucket %d", dirPage.ID(), bucketPage.ID())
	}
	dirPageID := t.dirPagID
	t.dirMu.Unlock()

	pg, err := t.pool.FetchPage(dirPageID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "hash: fetch directory page")
	}
	return LoadDirectory(pg), pg, nil
}

func (t *Table) fetchBucket(id page.ID) (*Bucket, *page.Page, error) {
	pg, err := t.pool.FetchPage(id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "hash: fetch bucket page %d", id)
	}
	return LoadBucket(pg, t.keyWidth, t.newKey), pg, nil
}

// GetValue performs a point query, appending every value stored under
// key to the returned slice.
func (t *Table) GetValue(key Key) ([]page.RID, error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()

	dir, _, err := t.fetchDirectory()
	if err != nil {
		return nil, err
	}
	bucketID := t.keyToPageID(key, dir)
	bucket, bucketPage, err := t.fetchBucket(bucketID)
	if err != nil {
		t.pool.UnpinPage(dir.PageID(), false)
		return nil, err
	}

	bucketPage.RLatch()
	var results []page.RID
	bucket.GetValue(key, t.cmp, &results)
	bucketPage.RUnlatch()

	t.pool.UnpinPage(bucketID, false)
	t.pool.UnpinPage(dir.PageID(), false)
	return results, nil
}

// Insert adds (key, value). If the target bucket is full it splits
// (possibly repeatedly) and retries.
func (t *Table) Insert(key Key, value page.RID) (bool, error) {
	t.tableLatch.RLock()

	dir, _, err := t.fetchDirectory()
	if err != nil {
		t.tableLatch.RUnlock()
		return false, err
	}
	bucketID := t.keyToPageID(key, dir)
	bucket, bucketPage, err := t.fetchBucket(bucketID)
	if err != nil {
		t.pool.UnpinPage(dir.PageID(), false)
		t.tableLatch.RUnlock()
		return false, err
	}

	bucketPage.WLatch()
	if !bucket.IsFull() {
		ok := bucket.Insert(key, value, t.cmp)
		bucket.Store(bucketPage)
		bucketPage.WUnlatch()

		t.pool.UnpinPage(bucketID, ok)
		t.pool.UnpinPage(dir.PageID(), false)
		t.tableLatch.RUnlock()
		return ok, nil
	}

	bucketPage.WUnlatch()
	t.pool.UnpinPage(bucketID, false)
	t.pool.UnpinPage(dir.PageID(), false)
	t.tableLatch.RUnlock()

	return t.splitInsert(key, value)
}

// splitInsert grows the bucket that key hashes to (and the directory,
// if needed), redistributes its entries, and retries the insert
// (spec §4.F).
func (t *Table) splitInsert(key Key, value page.RID) (bool, error) {
	t.tableLatch.Lock()

	dir, _, err := t.fetchDirectory()
	if err != nil {
		t.tableLatch.Unlock()
		return false, err
	}

	splitIdx := t.keyToDirectoryIndex(key, dir)
	splitDepth := dir.GetLocalDepth(splitIdx)
	if splitDepth >= MaxGlobalDepth {
		t.pool.UnpinPage(dir.PageID(), false)
		t.tableLatch.Unlock()
		return false, nil
	}

	if splitDepth == dir.GetGlobalDepth() {
		dir.IncrGlobalDepth()
	}
	dir.IncrLocalDepth(splitIdx)

	splitPageID := dir.GetBucketPageId(splitIdx)
	splitBucket, splitPage, err := t.fetchBucket(splitPageID)
	if err != nil {
		t.pool.UnpinPage(dir.PageID(), false)
		t.tableLatch.Unlock()
		return false, err
	}
	splitPage.WLatch()
	saved := splitBucket.GetArrayCopy()
	splitBucket.Reset()

	imagePage, err := t.pool.NewPage()
	if err != nil || imagePage == nil {
		splitPage.WUnlatch()
		t.pool.UnpinPage(splitPageID, false)
		t.pool.UnpinPage(dir.PageID(), false)
		t.tableLatch.Unlock()
		return false, errors.Wrap(err, "hash: allocate split image bucket")
	}
	imagePage.WLatch()
	imageBucket := NewBucket(t.keyWidth, t.newKey)

	imageIdx := dir.GetSplitImageIndex(splitIdx)
	newLocalDepth := dir.GetLocalDepth(splitIdx)
	dir.SetLocalDepth(imageIdx, newLocalDepth)
	dir.SetBucketPageId(imageIdx, imagePage.ID())

	// The directory slots touched so far (splitIdx, imageIdx) are the
	// only ones brought up to date at this point; every other aliased
	// slot still holds its pre-split page id until propagate() runs
	// below. So route each saved entry by comparing its hash against
	// splitIdx's own bits under the new, wider mask, not by looking up
	// a directory slot that may not have been fixed up yet.
	localMask := dir.GetLocalDepthMask(splitIdx)
	splitBit := splitIdx & localMask
	for _, e := range saved {
		var ok bool
		if t.Hash(e.key)&localMask == splitBit {
			ok = splitBucket.Insert(e.key, e.value, t.cmp)
		} else {
			ok = imageBucket.Insert(e.key, e.value, t.cmp)
		}
		if !ok {
			splitPage.WUnlatch()
			imagePage.WUnlatch()
			t.pool.UnpinPage(splitPageID, false)
			t.pool.UnpinPage(imagePage.ID(), false)
			t.pool.UnpinPage(dir.PageID(), false)
			t.tableLatch.Unlock()
			return false, errors.New("hash: split redistribution dropped an entry")
		}
	}

	// Propagate the new local depth/page id to every directory slot
	// that used to alias with splitIdx or imageIdx.
	step := uint32(1) << newLocalDepth
	propagate := func(start uint32, pageID page.ID) {
		for i := start; ; {
			dir.SetBucketPageId(i, pageID)
			dir.SetLocalDepth(i, newLocalDepth)
			if i < step {
				break
			}
			i -= step
		}
		for i := start + step; i < dir.Size(); i += step {
			dir.SetBucketPageId(i, pageID)
			dir.SetLocalDepth(i, newLocalDepth)
		}
	}
	propagate(splitIdx, splitPageID)
	propagate(imageIdx, imagePage.ID())

	splitBucket.Store(splitPage)
	imageBucket.Store(imagePage)
	splitPage.WUnlatch()
	imagePage.WUnlatch()

	t.pool.UnpinPage(splitPageID, true)
	t.pool.UnpinPage(imagePage.ID(), true)
	t.pool.UnpinPage(dir.PageID(), true)
	t.tableLatch.Unlock()

	logging.Logger.Debugf("hash: split bucket %d into %d/%d, new global depth %d", splitPageID, splitPageID, imagePage.ID(), dir.GetGlobalDepth())

	return t.Insert(key, value)
}

// Remove deletes (key, value). If the bucket becomes empty, Merge is
// attempted.
func (t *Table) Remove(key Key, value page.RID) (bool, error) {
	t.tableLatch.RLock()

	dir, _, err := t.fetchDirectory()
	if err != nil {
		t.tableLatch.RUnlock()
		return false, err
	}
	bucketIdx := t.keyToDirectoryIndex(key, dir)
	bucketID := dir.GetBucketPageId(bucketIdx)
	bucket, bucketPage, err := t.fetchBucket(bucketID)
	if err != nil {
		t.pool.UnpinPage(dir.PageID(), false)
		t.tableLatch.RUnlock()
		return false, err
	}

	bucketPage.WLatch()
	ok := bucket.Remove(key, value, t.cmp)
	empty := bucket.IsEmpty()
	bucket.Store(bucketPage)
	bucketPage.WUnlatch()

	t.pool.UnpinPage(bucketID, ok)
	t.pool.UnpinPage(dir.PageID(), false)
	t.tableLatch.RUnlock()

	if ok && empty {
		if err := t.merge(bucketIdx); err != nil {
			return ok, err
		}
	}
	return ok, nil
}

// merge collapses an emptied bucket into its split image, when their
// local depths still agree and the target bucket is (still) empty, and
// shrinks the directory while it can (spec §4.F).
func (t *Table) merge(targetIdx uint32) error {
	t.tableLatch.Lock()
	defer t.tableLatch.Unlock()

	dir, _, err := t.fetchDirectory()
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(dir.PageID(), true)

	targetPageID := dir.GetBucketPageId(targetIdx)
	imageIdx := dir.GetSplitImageIndex(targetIdx)

	localDepth := dir.GetLocalDepth(targetIdx)
	if localDepth == 0 {
		return nil
	}
	if localDepth != dir.GetLocalDepth(imageIdx) {
		return nil
	}

	targetBucket, targetPage, err := t.fetchBucket(targetPageID)
	if err != nil {
		return err
	}
	targetPage.RLatch()
	empty := targetBucket.IsEmpty()
	targetPage.RUnlatch()
	t.pool.UnpinPage(targetPageID, false)
	if !empty {
		return nil
	}

	if _, err := t.pool.DeletePage(targetPageID); err != nil {
		return errors.Wrapf(err, "hash: delete merged-away bucket %d", targetPageID)
	}

	imagePageID := dir.GetBucketPageId(imageIdx)
	dir.SetBucketPageId(targetIdx, imagePageID)
	dir.DecrLocalDepth(targetIdx)
	dir.DecrLocalDepth(imageIdx)

	newDepth := dir.GetLocalDepth(targetIdx)
	for i := uint32(0); i < dir.Size(); i++ {
		if dir.GetBucketPageId(i) == targetPageID || dir.GetBucketPageId(i) == imagePageID {
			dir.SetBucketPageId(i, imagePageID)
			dir.SetLocalDepth(i, newDepth)
		}
	}

	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}

	logging.Logger.Debugf("hash: merged bucket %d into %d, global depth now %d", targetPageID, imagePageID, dir.GetGlobalDepth())
	return nil
}

// GetGlobalDepth returns the directory's current global depth.
func (t *Table) GetGlobalDepth() (uint32, error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()

	dir, _, err := t.fetchDirectory()
	if err != nil {
		return 0, err
	}
	defer t.pool.UnpinPage(dir.PageID(), false)
	return dir.GetGlobalDepth(), nil
}

// VerifyIntegrity checks the directory's structural invariants (spec HT1).
func (t *Table) VerifyIntegrity() error {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()

	dir, _, err := t.fetchDirectory()
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(dir.PageID(), false)
	return dir.VerifyIntegrity()
}
