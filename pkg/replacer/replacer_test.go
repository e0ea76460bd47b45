package replacer

import "testing"

func TestRecordAccessAndEvictableSize(t *testing.T) {
	r := New(8, 2)

	r.RecordAccess(0)
	if got := r.Size(); got != 0 {
		t.Fatalf("expected size 0 before any frame is evictable, got %d", got)
	}

	r.SetEvictable(0, true)
	if got := r.Size(); got != 1 {
		t.Fatalf("expected size 1, got %d", got)
	}

	r.SetEvictable(0, false)
	if got := r.Size(); got != 0 {
		t.Fatalf("expected size 0 after un-marking evictable, got %d", got)
	}
}

func TestSetEvictableOnUntrackedFrameIsNoop(t *testing.T) {
	r := New(8, 2)
	r.SetEvictable(5, true)
	if got := r.Size(); got != 0 {
		t.Fatalf("expected no-op on untracked frame, got size %d", got)
	}
}

func TestEvictPrefersInfiniteBackwardDistance(t *testing.T) {
	// pool_size=3, K=2, scenario from spec section 8 #3.
	r := New(3, 2)

	r.RecordAccess(0) // t=1
	r.RecordAccess(1) // t=2
	r.RecordAccess(2) // t=3
	r.RecordAccess(0) // t=4
	r.RecordAccess(1) // t=5

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	victim, ok := r.Evict()
	if !ok || victim != 2 {
		t.Fatalf("expected frame 2 (only 1 access, infinite backward distance) to be evicted first, got %v ok=%v", victim, ok)
	}

	// Frame 0 has k-th-oldest ts=1, frame 1 has k-th-oldest ts=2.
	victim, ok = r.Evict()
	if !ok || victim != 0 {
		t.Fatalf("expected frame 0 (k-th-oldest ts 1 < frame 1's 2) to be evicted next, got %v ok=%v", victim, ok)
	}

	if got := r.Size(); got != 1 {
		t.Fatalf("expected size 1 remaining, got %d", got)
	}
}

func TestEvictReturnsFalseWhenNothingEvictable(t *testing.T) {
	r := New(3, 2)
	r.RecordAccess(0)
	if _, ok := r.Evict(); ok {
		t.Fatal("expected no victim when no frame is evictable")
	}

	r.SetEvictable(0, true)
	if _, ok := r.Evict(); !ok {
		t.Fatal("expected a victim once evictable")
	}
	if _, ok := r.Evict(); ok {
		t.Fatal("expected no victim after the only tracked frame was evicted")
	}
}

func TestHistoryToCacheTransition(t *testing.T) {
	r := New(3, 2)

	r.RecordAccess(0)
	n := r.nodes[0]
	if n.inCache(r.k) {
		t.Fatal("frame should still be in the history bucket after 1 access with K=2")
	}

	r.RecordAccess(0)
	n = r.nodes[0]
	if !n.inCache(r.k) {
		t.Fatal("frame should transition to the cache bucket on its K-th access")
	}
	if n.kthOldestTS() != 1 {
		t.Fatalf("expected k-th-oldest timestamp 1, got %d", n.kthOldestTS())
	}
}

func TestRemoveIsNoopOnUntrackedFrame(t *testing.T) {
	r := New(3, 2)
	r.Remove(0) // must not panic
}

func TestRecordAccessOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range frame id")
		}
	}()
	r := New(3, 2)
	r.RecordAccess(99)
}

func TestEvictRemovesNode(t *testing.T) {
	r := New(3, 2)
	r.RecordAccess(0)
	r.SetEvictable(0, true)

	if _, ok := r.Evict(); !ok {
		t.Fatal("expected eviction to succeed")
	}
	if _, tracked := r.nodes[0]; tracked {
		t.Fatal("expected evicted node to be removed from the node store")
	}
}
