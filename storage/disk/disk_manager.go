// Package disk provides the disk manager contract the buffer pool
// consumes (§6 "Disk Manager (consumed)"), plus a real file-backed
// implementation so the rest of the module can be exercised end to end.
// Crash recovery, WAL coordination, and space reclamation below the
// page level are out of scope (spec §1 non-goals).
package disk

import (
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// Manager is the interface the buffer pool depends on. The core never
// retries failed I/O; failures propagate to the caller.
type Manager interface {
	ReadPage(id page.ID, out *[page.Size]byte) error
	WritePage(id page.ID, data *[page.Size]byte) error

	// AllocatePage records that a new page id is now in use and
	// returns it. The buffer pool instance itself computes the strided
	// id (§4.B); AllocatePage exists so a disk manager backed by a
	// real file can track high-water marks and pre-extend the file.
	AllocatePage(id page.ID) error

	// DeallocatePage records that a page id is no longer in use. The
	// on-disk bytes are not required to be reclaimed; this is
	// bookkeeping only, matching BusTub's no-op DeallocatePage.
	DeallocatePage(id page.ID) error

	Close() error
}

// FileManager is a disk manager backed by a single flat file, pages
// addressed by page.ID * page.Size byte offset.
type FileManager struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileManager opens (creating if necessary) the file at path as the
// backing store for pages.
func NewFileManager(path string) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "disk: open %s", path)
	}
	return &FileManager{file: f}, nil
}

func (m *FileManager) offset(id page.ID) int64 {
	return int64(id) * int64(page.Size)
}

// ReadPage reads Size bytes at id's offset. A page id past the current
// end of file reads as all-zero, matching a freshly allocated page.
func (m *FileManager) ReadPage(id page.ID, out *[page.Size]byte) error {
	if id == page.InvalidID {
		return errors.New("disk: read of invalid page id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.file.ReadAt(out[:], m.offset(id))
	if err != nil && n == 0 {
		*out = [page.Size]byte{}
		return nil
	}
	if err != nil && n < page.Size {
		return errors.Wrapf(err, "disk: short read of page %d", id)
	}
	return nil
}

// WritePage writes Size bytes at id's offset.
func (m *FileManager) WritePage(id page.ID, data *[page.Size]byte) error {
	if id == page.InvalidID {
		return errors.New("disk: write of invalid page id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.file.WriteAt(data[:], m.offset(id))
	if err != nil {
		return errors.Wrapf(err, "disk: write page %d", id)
	}
	return nil
}

// AllocatePage is a bookkeeping no-op for a flat-file backing store:
// WritePage extends the file lazily.
func (m *FileManager) AllocatePage(page.ID) error { return nil }

// DeallocatePage is a bookkeeping no-op; see BusTub design note in §6.
func (m *FileManager) DeallocatePage(page.ID) error { return nil }

// Close flushes and closes the backing file.
func (m *FileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return errors.Wrap(err, "disk: sync on close")
	}
	return m.file.Close()
}
