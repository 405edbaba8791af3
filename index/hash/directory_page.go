package hash

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// MaxGlobalDepth bounds the directory's global depth (spec §4.F step
// 1: "ld >= MAX_BUCKET_DEPTH (e.g. 9)").
const MaxGlobalDepth = 9

// dirSlotCount is the directory's fixed live-plus-dead slot count,
// 2^MaxGlobalDepth (spec §3 "two parallel arrays of length 2^MAX_DEPTH").
const dirSlotCount = 1 << MaxGlobalDepth

// Directory is the hash table's directory page (spec §4.E, §3): global
// depth plus, for the first 2^G live slots, a local depth and bucket
// page id. No internal latching — callers hold table_latch.
type Directory struct {
	pageID       page.ID
	globalDepth  uint32
	localDepths  [dirSlotCount]uint8
	bucketPageID [dirSlotCount]page.ID
}

// NewDirectory builds an empty directory (global depth 0, one live
// slot) not yet assigned a page id.
func NewDirectory() *Directory {
	d := &Directory{pageID: page.InvalidID}
	for i := range d.bucketPageID {
		d.bucketPageID[i] = page.InvalidID
	}
	return d
}

// PageID returns the page id this directory is persisted under.
func (d *Directory) PageID() page.ID { return d.pageID }

// SetPageID sets the page id this directory is persisted under.
func (d *Directory) SetPageID(id page.ID) { d.pageID = id }

// GetGlobalDepth returns the current global depth G.
func (d *Directory) GetGlobalDepth() uint32 { return d.globalDepth }

// Size returns the number of live directory slots, 2^G.
func (d *Directory) Size() uint32 { return 1 << d.globalDepth }

// GetGlobalDepthMask returns Size()-1, the mask Hash(k) is ANDed with
// to produce a directory index.
func (d *Directory) GetGlobalDepthMask() uint32 { return d.Size() - 1 }

// IncrGlobalDepth grows the live directory by doubling it: every slot i
// in [0, 2^G) is mirrored into slot i+2^G with the same bucket page id
// and local depth, then G is incremented.
func (d *Directory) IncrGlobalDepth() {
	oldSize := d.Size()
	for i := uint32(0); i < oldSize; i++ {
		d.bucketPageID[i+oldSize] = d.bucketPageID[i]
		d.localDepths[i+oldSize] = d.localDepths[i]
	}
	d.globalDepth++
}

// DecrGlobalDepth shrinks the live directory by halving it.
func (d *Directory) DecrGlobalDepth() {
	if d.globalDepth > 0 {
		d.globalDepth--
	}
}

// GetLocalDepth returns slot i's local depth.
func (d *Directory) GetLocalDepth(i uint32) uint32 { return uint32(d.localDepths[i]) }

// SetLocalDepth sets slot i's local depth.
func (d *Directory) SetLocalDepth(i uint32, depth uint32) { d.localDepths[i] = uint8(depth) }

// IncrLocalDepth increments slot i's local depth.
func (d *Directory) IncrLocalDepth(i uint32) { d.localDepths[i]++ }

// DecrLocalDepth decrements slot i's local depth.
func (d *Directory) DecrLocalDepth(i uint32) {
	if d.localDepths[i] > 0 {
		d.localDepths[i]--
	}
}

// GetLocalDepthMask returns (1 << local_depth[i]) - 1.
func (d *Directory) GetLocalDepthMask(i uint32) uint32 {
	return (1 << d.GetLocalDepth(i)) - 1
}

// GetBucketPageId returns slot i's bucket page id.
func (d *Directory) GetBucketPageId(i uint32) page.ID { return d.bucketPageID[i] }

// SetBucketPageId sets slot i's bucket page id.
func (d *Directory) SetBucketPageId(i uint32, id page.ID) { d.bucketPageID[i] = id }

// GetSplitImageIndex returns the sibling index formed by flipping the
// bit at position local_depth[i]-1.
func (d *Directory) GetSplitImageIndex(i uint32) uint32 {
	ld := d.GetLocalDepth(i)
	if ld == 0 {
		return i
	}
	return i ^ (1 << (ld - 1))
}

// CanShrink reports whether every live slot's local depth is strictly
// less than the global depth, i.e. whether DecrGlobalDepth is safe.
func (d *Directory) CanShrink() bool {
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		if d.GetLocalDepth(i) >= d.globalDepth {
			return false
		}
	}
	return true
}

// VerifyIntegrity asserts the directory's structural invariants (spec
// HT1): every live slot's local depth is at most G, and all slots
// sharing the same low local_depth[i] bits agree on the bucket page id.
func (d *Directory) VerifyIntegrity() error {
	size := d.Size()
	seen := make(map[page.ID]uint32, size)
	for i := uint32(0); i < size; i++ {
		ld := d.GetLocalDepth(i)
		if ld > d.globalDepth {
			return errors.Errorf("hash: slot %d local depth %d exceeds global depth %d", i, ld, d.globalDepth)
		}
		pid := d.bucketPageID[i]
		if want, ok := seen[pid]; ok {
			if want != ld {
				return errors.Errorf("hash: bucket page %d has inconsistent local depth (%d vs %d)", pid, want, ld)
			}
		} else {
			seen[pid] = ld
		}
		mask := d.GetLocalDepthMask(i)
		for j := uint32(0); j < size; j++ {
			if j != i && (j&mask) == (i&mask) && d.bucketPageID[j] != pid {
				return errors.Errorf("hash: slots %d and %d share local-depth bits but differ in bucket page (%d vs %d)",
					i, j, d.bucketPageID[j], pid)
			}
		}
	}
	return nil
}

// DebugString formats a human-readable dump of the live directory
// slots, matching BusTub's PrintDirectory debug helper.
func (d *Directory) DebugString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "directory page_id=%d global_depth=%d\n", d.pageID, d.globalDepth)
	for i := uint32(0); i < d.Size(); i++ {
		fmt.Fprintf(&sb, "  [%d] local_depth=%d bucket_page_id=%d\n", i, d.GetLocalDepth(i), d.bucketPageID[i])
	}
	return sb.String()
}
