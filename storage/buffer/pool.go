package buffer

import "github.com/zhukovaskychina/dbstorage-core/storage/page"

// Pool is the surface both a single Instance and a ParallelPool
// present to callers (the hash index, the table heap): allocate, fetch,
// unpin, flush. Consumers never need to know whether they're talking to
// one instance or a sharded pool.
type Pool interface {
	NewPage() (*page.Page, error)
	FetchPage(id page.ID) (*page.Page, error)
	UnpinPage(id page.ID, isDirty bool) bool
	FlushPage(id page.ID) (bool, error)
	FlushAllPages() error
	DeletePage(id page.ID) (bool, error)
}

var (
	_ Pool = (*Instance)(nil)
	_ Pool = (*ParallelPool)(nil)
)
