package buffer

import (
	"path/filepath"
	"testing"

	"github.com/mnohosten/pagecache/pkg/pagestore"
	"github.com/mnohosten/pagecache/pkg/scheduler"
)

func newTestPool(t *testing.T, poolSize, k int) (*Pool, *pagestore.DiskManager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := pagestore.NewDiskManager(path, pagestore.DefaultCodecConfig())
	if err != nil {
		t.Fatalf("new disk manager: %v", err)
	}
	sched := scheduler.New(dm, scheduler.DefaultConfig())
	t.Cleanup(func() {
		sched.Shutdown()
		dm.Close()
	})
	return New(Config{PoolSize: poolSize, K: k}, sched, dm), dm
}

func TestNewPageFillsPoolThenFailsThenRecoversOnUnpin(t *testing.T) {
	// Scenario from spec.md section 8, #1: pool_size=3.
	pool, _ := newTestPool(t, 3, 2)

	p0, _, err := pool.NewPage()
	if err != nil {
		t.Fatalf("new page 0: %v", err)
	}
	if _, _, err := pool.NewPage(); err != nil {
		t.Fatalf("new page 1: %v", err)
	}
	if _, _, err := pool.NewPage(); err != nil {
		t.Fatalf("new page 2: %v", err)
	}

	if _, _, err := pool.NewPage(); err != ErrNoFrameAvailable {
		t.Fatalf("expected ErrNoFrameAvailable with all frames pinned, got %v", err)
	}

	if ok := pool.UnpinPage(p0, false); !ok {
		t.Fatal("expected unpin of p0 to succeed")
	}

	p3, _, err := pool.NewPage()
	if err != nil {
		t.Fatalf("expected new page to succeed after unpin, got %v", err)
	}
	if p3 == p0 {
		t.Fatal("expected a fresh page id, ids are never reused")
	}
}

func TestDirtyVictimIsFlushedBeforeReuse(t *testing.T) {
	pool, dm := newTestPool(t, 3, 2)

	p0, f0, err := pool.NewPage()
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	copy(f0.Data[:], []byte("dirty victim"))
	if !pool.UnpinPage(p0, true) {
		t.Fatal("expected unpin to succeed")
	}

	if _, _, err := pool.NewPage(); err != nil {
		t.Fatalf("new page 1: %v", err)
	}
	if _, _, err := pool.NewPage(); err != nil {
		t.Fatalf("new page 2: %v", err)
	}
	// Pool is full again; p0 is the only evictable frame (unpinned),
	// so allocating a 4th page must evict and flush it first.
	if _, _, err := pool.NewPage(); err != nil {
		t.Fatalf("expected eviction of p0 to make room, got %v", err)
	}

	buf := make([]byte, pagestore.PageSize)
	if err := dm.ReadPage(p0, buf); err != nil {
		t.Fatalf("read p0 back from disk: %v", err)
	}
	want := make([]byte, pagestore.PageSize)
	copy(want, []byte("dirty victim"))
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("expected dirty victim to have been flushed before reuse, mismatch at byte %d", i)
		}
	}
}

func TestFetchPageTwicePinsTwiceThenUnpinsTwice(t *testing.T) {
	pool, _ := newTestPool(t, 3, 2)

	pageID, _, err := pool.NewPage()
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	pool.UnpinPage(pageID, false)

	if _, err := pool.FetchPage(pageID); err != nil {
		t.Fatalf("fetch 1: %v", err)
	}
	if _, err := pool.FetchPage(pageID); err != nil {
		t.Fatalf("fetch 2: %v", err)
	}

	if !pool.UnpinPage(pageID, false) {
		t.Fatal("expected first unpin to succeed")
	}
	// Still pinned once: evicting all other frames should not be able
	// to touch this one yet, but we can observe it indirectly via a
	// second unpin succeeding and a third failing.
	if !pool.UnpinPage(pageID, false) {
		t.Fatal("expected second unpin to succeed")
	}
	if pool.UnpinPage(pageID, false) {
		t.Fatal("expected third unpin on an already-zero pin count to fail")
	}
}

func TestDeletePagePinnedFails(t *testing.T) {
	pool, _ := newTestPool(t, 3, 2)

	pageID, _, err := pool.NewPage()
	if err != nil {
		t.Fatalf("new page: %v", err)
	}

	if pool.DeletePage(pageID) {
		t.Fatal("expected delete of a pinned page to fail")
	}

	pool.UnpinPage(pageID, false)
	if !pool.DeletePage(pageID) {
		t.Fatal("expected delete of an unpinned page to succeed")
	}
}

func TestFlushPageOnInvalidPageIDFails(t *testing.T) {
	pool, _ := newTestPool(t, 3, 2)
	if pool.FlushPage(pagestore.InvalidPageID) {
		t.Fatal("expected FlushPage(INVALID) to return false")
	}
}

func TestDeletePageThenFetchRereadsFromDisk(t *testing.T) {
	// Scenario from spec.md section 8, #6.
	pool, _ := newTestPool(t, 3, 2)

	pageID, frame, err := pool.NewPage()
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	copy(frame.Data[:], []byte("will be deleted and rewritten"))
	pool.UnpinPage(pageID, true)
	pool.FlushPage(pageID)
	if !pool.DeletePage(pageID) {
		t.Fatal("expected delete to succeed")
	}

	// pageID's old frame was returned to the free list by DeletePage; fetching pageID
	// again (a different page's worth of disk state would normally
	// live there, but since this DiskManager drops the directory
	// entry on delete, it reads back as zero) must go through the
	// scheduler rather than serving a stale resident copy.
	frame2, err := pool.FetchPage(pageID)
	if err != nil {
		t.Fatalf("fetch after delete: %v", err)
	}
	for i, b := range frame2.Data {
		if b != 0 {
			t.Fatalf("expected zeroed page after delete+refetch at byte %d, got %x", i, b)
		}
	}
}

func TestStatsTracksHitsAndMisses(t *testing.T) {
	pool, _ := newTestPool(t, 3, 2)

	pageID, _, _ := pool.NewPage()
	pool.UnpinPage(pageID, false)

	pool.FetchPage(pageID)
	stats := pool.Stats()
	if stats.Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 0 {
		t.Fatalf("expected 0 misses (NewPage is not a fetch), got %d", stats.Misses)
	}
	if stats.PoolSize != 3 {
		t.Fatalf("expected pool size 3, got %d", stats.PoolSize)
	}
}
