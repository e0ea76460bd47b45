// Package replacer implements the LRU-K eviction policy used by the
// buffer pool manager to pick a victim frame when no free frame is
// available.
package replacer

import "sync"

// FrameID is a dense integer identifying a slot in the buffer pool's
// frame array.
type FrameID int32

// node is the replacer's per-frame bookkeeping. It is value-owned by
// the node store; the history/cache orderings never hold their own
// pointers into it, only the frame id.
type node struct {
	frameID     FrameID
	history     []uint64 // bounded to K entries, oldest at index 0
	accessCount int
	evictable   bool
}

// inCache reports whether the node has accumulated enough history to
// be governed by the K-th-oldest-access key instead of plain
// most-recent-access. This derives the History/Cache bucket from
// accessCount rather than keeping two separate ordered containers —
// the two are equivalent (see design note on intrusive ordering) and
// a single node store scanned once per Evict is simpler in Go than
// maintaining two structures whose re-keying is not monotonic with
// insertion order.
func (n *node) inCache(k int) bool {
	return n.accessCount >= k
}

// mostRecentTS is the key used while the node is in the history
// bucket: the timestamp of its latest access.
func (n *node) mostRecentTS() uint64 {
	return n.history[len(n.history)-1]
}

// kthOldestTS is the key used once the node has reached K accesses:
// the oldest timestamp still retained in its bounded window.
func (n *node) kthOldestTS() uint64 {
	return n.history[0]
}

// LRUK tracks access history for a bounded set of frames and selects
// an eviction victim by maximum backward K-distance, ties broken by
// classical LRU among the frames with fewer than K accesses.
type LRUK struct {
	mu            sync.Mutex
	k             int
	capacity      int
	clock         uint64
	nodes         map[FrameID]*node
	evictableSize int
}

// New creates a replacer tracking frames in [0, capacity) with the
// given K.
func New(capacity, k int) *LRUK {
	if k < 1 {
		k = 1
	}
	return &LRUK{
		k:        k,
		capacity: capacity,
		nodes:    make(map[FrameID]*node),
	}
}

func (r *LRUK) checkRange(frameID FrameID) {
	if frameID < 0 || int(frameID) >= r.capacity {
		panic("replacer: frame id out of range")
	}
}

// RecordAccess logs a new access to frameID at the next logical
// timestamp, creating a node for it if this is its first access.
func (r *LRUK) RecordAccess(frameID FrameID) {
	r.checkRange(frameID)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock++
	ts := r.clock

	n, ok := r.nodes[frameID]
	if !ok {
		r.nodes[frameID] = &node{
			frameID:     frameID,
			history:     []uint64{ts},
			accessCount: 1,
		}
		return
	}

	n.accessCount++
	n.history = append(n.history, ts)
	if len(n.history) > r.k {
		n.history = n.history[1:]
	}
}

// SetEvictable toggles whether frameID is a candidate for eviction.
// It is a no-op if frameID is untracked.
func (r *LRUK) SetEvictable(frameID FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if n.evictable == evictable {
		return
	}
	n.evictable = evictable
	if evictable {
		r.evictableSize++
	} else {
		r.evictableSize--
	}
}

// Evict picks the evictable frame with maximum backward K-distance.
// Frames with fewer than K accesses have infinite backward distance
// and are considered before any frame that has reached K accesses;
// among those, classical LRU (smallest most-recent timestamp) breaks
// ties. It returns false if no frame is evictable.
func (r *LRUK) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		bestHistory   *node
		bestHistoryTS uint64
		bestCache     *node
		bestCacheTS   uint64
	)

	for _, n := range r.nodes {
		if !n.evictable {
			continue
		}
		if !n.inCache(r.k) {
			ts := n.mostRecentTS()
			if bestHistory == nil || ts < bestHistoryTS {
				bestHistory, bestHistoryTS = n, ts
			}
			continue
		}
		ts := n.kthOldestTS()
		if bestCache == nil || ts < bestCacheTS {
			bestCache, bestCacheTS = n, ts
		}
	}

	victim := bestHistory
	if victim == nil {
		victim = bestCache
	}
	if victim == nil {
		return 0, false
	}

	delete(r.nodes, victim.frameID)
	r.evictableSize--
	return victim.frameID, true
}

// Remove unconditionally drops a tracked frame. The caller must only
// call this on a frame it knows is evictable; it is a no-op if
// frameID is untracked.
func (r *LRUK) Remove(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if n.evictable {
		r.evictableSize--
	}
	delete(r.nodes, frameID)
}

// Size returns the number of tracked frames currently marked
// evictable.
func (r *LRUK) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictableSize
}
