package buffer

import (
	"sync"

	"github.com/zhukovaskychina/dbstorage-core/storage/disk"
	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// ParallelPool shards a buffer pool across M independent Instances by
// page id, so unrelated pages never contend on the same coarse latch
// (spec §4.C).
type ParallelPool struct {
	instances []*Instance

	cursorMu sync.Mutex
	next     int
}

// NewParallelPool builds numInstances Instances of instanceSize frames
// each, one disk manager per instance. All disk managers must agree on
// which page ids belong to which instance (page id mod numInstances).
func NewParallelPool(numInstances, instanceSize int, disks []disk.Manager) *ParallelPool {
	if len(disks) != numInstances {
		panic("buffer: one disk manager per instance is required")
	}
	instances := make([]*Instance, numInstances)
	for i := 0; i < numInstances; i++ {
		instances[i] = NewInstance(instanceSize, disks[i], int32(i), int32(numInstances))
	}
	return &ParallelPool{instances: instances}
}

// GetPoolSize returns the total frame count across every instance.
func (p *ParallelPool) GetPoolSize() int {
	total := 0
	for _, inst := range p.instances {
		total += inst.Size()
	}
	return total
}

func (p *ParallelPool) instanceFor(id page.ID) *Instance {
	m := len(p.instances)
	idx := int(id) % m
	if idx < 0 {
		idx += m
	}
	return p.instances[idx]
}

// NewPage attempts each instance starting at the round-robin cursor,
// advancing it by one per attempt, returning the first successfully
// allocated page or nil after a full sweep finds every instance full.
func (p *ParallelPool) NewPage() (*page.Page, error) {
	m := len(p.instances)

	p.cursorMu.Lock()
	start := p.next
	p.cursorMu.Unlock()

	for attempt := 0; attempt < m; attempt++ {
		idx := (start + attempt) % m

		p.cursorMu.Lock()
		p.next = (idx + 1) % m
		p.cursorMu.Unlock()

		pg, err := p.instances[idx].NewPage()
		if err != nil {
			return nil, err
		}
		if pg != nil {
			return pg, nil
		}
	}
	return nil, nil
}

// FetchPage dispatches to the instance owning id.
func (p *ParallelPool) FetchPage(id page.ID) (*page.Page, error) {
	return p.instanceFor(id).FetchPage(id)
}

// UnpinPage dispatches to the instance owning id.
func (p *ParallelPool) UnpinPage(id page.ID, isDirty bool) bool {
	return p.instanceFor(id).UnpinPage(id, isDirty)
}

// FlushPage dispatches to the instance owning id.
func (p *ParallelPool) FlushPage(id page.ID) (bool, error) {
	return p.instanceFor(id).FlushPage(id)
}

// FlushAllPages flushes every instance.
func (p *ParallelPool) FlushAllPages() error {
	for _, inst := range p.instances {
		if err := inst.FlushAllPages(); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage dispatches to the instance owning id.
func (p *ParallelPool) DeletePage(id page.ID) (bool, error) {
	return p.instanceFor(id).DeletePage(id)
}
