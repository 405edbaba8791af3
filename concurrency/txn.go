// Package concurrency implements the transaction handle the lock
// manager operates on (spec §3 "Transaction (consumed interface)") and
// the lock manager itself (spec §4.G).
package concurrency

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

// IsolationLevel controls how aggressively LockShared/Unlock enforce
// two-phase locking (spec §3).
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
)

// State is a transaction's position in its lifecycle (spec §3).
type State int

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

// nextTxnID is the module-wide monotonically increasing transaction id
// source, an atomic counter the way the teacher's manager package keeps
// counters for its own ids.
var nextTxnID atomic.Int64

// Transaction is the minimal handle the lock manager (and, through it,
// the execution layer) needs: identity, isolation level, lifecycle
// state, and the two RID sets it currently holds locks on.
type Transaction struct {
	mu sync.Mutex

	id        int64
	isolation IsolationLevel
	state     State

	sharedLocks    map[page.RID]struct{}
	exclusiveLocks map[page.RID]struct{}
}

// NewTransaction allocates a fresh transaction with the next
// monotonically increasing id.
func NewTransaction(isolation IsolationLevel) *Transaction {
	return &Transaction{
		id:             nextTxnID.Inc(),
		isolation:      isolation,
		state:          Growing,
		sharedLocks:    make(map[page.RID]struct{}),
		exclusiveLocks: make(map[page.RID]struct{}),
	}
}

// ID returns the transaction's id. Lower ids are "older" per wound-wait.
func (t *Transaction) ID() int64 { return t.id }

// IsolationLevel returns the transaction's configured isolation level.
func (t *Transaction) IsolationLevel() IsolationLevel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isolation
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions the transaction's lifecycle state.
func (t *Transaction) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// IsSharedLocked reports whether the transaction currently holds a
// shared lock on rid.
func (t *Transaction) IsSharedLocked(rid page.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sharedLocks[rid]
	return ok
}

// IsExclusiveLocked reports whether the transaction currently holds an
// exclusive lock on rid.
func (t *Transaction) IsExclusiveLocked(rid page.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.exclusiveLocks[rid]
	return ok
}

func (t *Transaction) addShared(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sharedLocks[rid] = struct{}{}
}

func (t *Transaction) addExclusive(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exclusiveLocks[rid] = struct{}{}
}

func (t *Transaction) removeShared(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedLocks, rid)
}

func (t *Transaction) removeExclusive(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.exclusiveLocks, rid)
}

// clearLockSetsFor drops rid from both lock sets, used when this
// transaction is wounded.
func (t *Transaction) clearLockSetsFor(rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sharedLocks, rid)
	delete(t.exclusiveLocks, rid)
}
