// Command demo_storage_core wires the buffer pool, extendible hash
// index, table heap, and lock manager together end to end, the way
// cmd/demo_buffer_pool exercised the teacher's LRU cache.
package main

import (
	"fmt"
	"os"

	"github.com/zhukovaskychina/dbstorage-core/concurrency"
	"github.com/zhukovaskychina/dbstorage-core/config"
	"github.com/zhukovaskychina/dbstorage-core/heap"
	"github.com/zhukovaskychina/dbstorage-core/index/hash"
	"github.com/zhukovaskychina/dbstorage-core/logging"
	"github.com/zhukovaskychina/dbstorage-core/storage/buffer"
	"github.com/zhukovaskychina/dbstorage-core/storage/disk"
	"github.com/zhukovaskychina/dbstorage-core/storage/page"
)

func main() {
	fmt.Println("=== Storage Core Demo ===")

	cfg, err := config.LoadTOML("storage.toml")
	must(err)
	fmt.Printf("config: pool_size=%d num_instances=%d bucket_key_width=%d\n",
		cfg.Storage.PoolSize, cfg.Storage.NumInstances, cfg.Storage.BucketKeyWidth)

	dbPath, err := os.MkdirTemp("", "dbstorage-core-demo-*")
	must(err)
	defer os.RemoveAll(dbPath)

	dm, err := disk.NewFileManager(dbPath + "/demo.db")
	must(err)
	defer dm.Close()
	pool := buffer.NewInstance(cfg.Storage.PoolSize, dm, 0, 1)

	fmt.Println("\n1. Buffer pool: allocate and round-trip a page...")
	demoBufferPool(pool)

	fmt.Println("\n2. Table heap: insert, read, delete tuples...")
	h := demoTableHeap(pool)

	fmt.Println("\n3. Hash index: index the heap's RIDs by an integer key...")
	demoHashIndex(pool, h)

	fmt.Println("\n4. Lock manager: wound-wait between two transactions...")
	demoLockManager()

	fmt.Println("\n=== Demo completed successfully ===")
}

func demoBufferPool(pool buffer.Pool) {
	pg, err := pool.NewPage()
	must(err)
	copy(pg.Data()[:], []byte("hello storage core"))
	id := pg.ID()
	must1(pool.UnpinPage(id, true))

	refetched, err := pool.FetchPage(id)
	must(err)
	fmt.Printf("  page %d round-trips: %q\n", id, string(refetched.Data()[:19]))
	must1(pool.UnpinPage(id, false))
}

func demoTableHeap(pool buffer.Pool) *heap.PageHeap {
	h, err := heap.NewPageHeap(pool)
	must(err)

	rid, err := h.InsertTuple([]byte("row one"))
	must(err)
	fmt.Printf("  inserted tuple at %+v\n", rid)

	got, err := h.GetTuple(rid)
	must(err)
	fmt.Printf("  read back: %q\n", string(got))
	return h
}

func demoHashIndex(pool buffer.Pool, h *heap.PageHeap) {
	tbl := hash.NewTable(pool, 4, func(raw []byte) hash.Key { return hash.NewKey4FromBytes(raw) },
		hash.BytesEqual, hash.XXHashFunction{})

	rid, err := h.InsertTuple([]byte("indexed row"))
	must(err)

	key := hash.IntKey(1)
	ok, err := tbl.Insert(key, rid)
	must(err)
	fmt.Printf("  indexed key=1 -> %+v, inserted=%v\n", rid, ok)

	results, err := tbl.GetValue(key)
	must(err)
	fmt.Printf("  lookup key=1 -> %+v\n", results)

	depth, err := tbl.GetGlobalDepth()
	must(err)
	fmt.Printf("  global depth=%d\n", depth)
	must(tbl.VerifyIntegrity())
}

func demoLockManager() {
	lm := concurrency.NewLockManager()
	older := concurrency.NewTransaction(concurrency.RepeatableRead)
	younger := concurrency.NewTransaction(concurrency.RepeatableRead)
	if older.ID() > younger.ID() {
		older, younger = younger, older
	}
	txns := map[int64]*concurrency.Transaction{older.ID(): older, younger.ID(): younger}
	rid := page.RID{PageID: 0, Slot: 0}

	ok, err := lm.LockExclusive(older, rid, txns)
	must(err)
	fmt.Printf("  txn %d acquired X on %+v: %v\n", older.ID(), rid, ok)

	_, err = lm.LockExclusive(younger, rid, txns)
	if err != nil {
		fmt.Printf("  txn %d (younger) wounded as expected: %v\n", younger.ID(), err)
	}

	lm.Unlock(older, rid)
	fmt.Printf("  txn %d unlocked, state=%v\n", older.ID(), older.State())
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "demo failed:", err)
		os.Exit(1)
	}
}

func must1(ok bool) {
	if !ok {
		fmt.Fprintln(os.Stderr, "demo failed: expected unpin to succeed")
		os.Exit(1)
	}
}

func init() {
	logging.Logger.Debugf("demo_storage_core starting")
}
