// Package buffer implements the buffer pool manager (BPM): the
// component that owns the frame array, the page table, the free
// list, and the LRU-K replacer, and mediates consumers' access to disk
// pages. Access goes either through a scoped guard (NewPageGuarded,
// FetchPageBasic/Read/Write) or through the exported unguarded
// NewPage/FetchPage/UnpinPage calls, which hand out a raw *Frame and
// leave unpinning to the caller. See spec.md sections 4.B and 4.C.
package buffer

import (
	"fmt"
	"sync"

	"github.com/mnohosten/pagecache/pkg/pagestore"
	"github.com/mnohosten/pagecache/pkg/replacer"
	"github.com/mnohosten/pagecache/pkg/scheduler"
)

// Allocator is the page-id allocator the pool consumes directly
// (never through the disk scheduler, since allocation/deallocation is
// synchronous bookkeeping, not a disk read/write job).
type Allocator interface {
	AllocatePage() (pagestore.PageID, error)
	DeallocatePage(pagestore.PageID) error
}

// EventListener receives notifications about notable pool state
// transitions. It is optional; pkg/adminserver implements it to
// broadcast eviction/flush/fetch-miss events over a websocket.
type EventListener interface {
	OnFetchMiss(pageID pagestore.PageID)
	OnEvict(pageID pagestore.PageID, wasDirty bool)
	OnFlush(pageID pagestore.PageID)
}

// Pool is the buffer pool manager. A single mutex serializes every
// public operation; the disk scheduler is invoked while the mutex is
// held, which is safe because it never re-enters the pool (spec.md
// section 4.B).
type Pool struct {
	mu sync.Mutex

	frames    []*Frame
	pageTable map[pagestore.PageID]replacer.FrameID
	freeList  []replacer.FrameID

	replacer  *replacer.LRUK
	scheduler *scheduler.Scheduler
	allocator Allocator

	listener EventListener

	hits   int64
	misses int64
}

// Config controls pool construction.
type Config struct {
	PoolSize int
	K        int // LRU-K's K
}

// New creates a pool of cfg.PoolSize frames, all initially on the
// free list.
func New(cfg Config, sched *scheduler.Scheduler, allocator Allocator) *Pool {
	p := &Pool{
		frames:    make([]*Frame, cfg.PoolSize),
		pageTable: make(map[pagestore.PageID]replacer.FrameID),
		freeList:  make([]replacer.FrameID, 0, cfg.PoolSize),
		replacer:  replacer.New(cfg.PoolSize, cfg.K),
		scheduler: sched,
		allocator: allocator,
	}
	for i := 0; i < cfg.PoolSize; i++ {
		p.frames[i] = &Frame{ID: replacer.FrameID(i), PageID: pagestore.InvalidPageID}
		p.freeList = append(p.freeList, replacer.FrameID(i))
	}
	return p
}

// SetEventListener installs (or clears, with nil) the listener
// notified of fetch-miss, eviction, and flush events. Must be called
// before concurrent use begins.
func (p *Pool) SetEventListener(l EventListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = l
}

// pickFrame implements the shared frame-acquisition subroutine from
// spec.md section 4.B: free list first, else ask the replacer for a
// victim, flush it if dirty, and detach it from the page table.
// Caller must hold p.mu.
func (p *Pool) pickFrame() (replacer.FrameID, error) {
	if n := len(p.freeList); n > 0 {
		id := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return id, nil
	}

	frameID, ok := p.replacer.Evict()
	if !ok {
		return 0, ErrNoFrameAvailable
	}

	frame := p.frames[frameID]
	wasDirty := frame.Dirty
	if frame.Dirty {
		future := p.scheduler.Schedule(&scheduler.Job{
			IsWrite: true,
			PageID:  frame.PageID,
			Buffer:  frame.Data[:],
		})
		if err := future.Await(); err != nil {
			return 0, fmt.Errorf("buffer: flush victim frame %d before reuse: %w", frameID, err)
		}
		frame.Dirty = false
	}
	if p.listener != nil {
		p.listener.OnEvict(frame.PageID, wasDirty)
	}

	delete(p.pageTable, frame.PageID)
	return frameID, nil
}

// NewPage allocates a fresh page, installs it in an available frame,
// pins it once, and returns its id and frame.
func (p *Pool) NewPage() (pagestore.PageID, *Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, err := p.pickFrame()
	if err != nil {
		return pagestore.InvalidPageID, nil, err
	}

	pageID, err := p.allocator.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, frameID)
		return pagestore.InvalidPageID, nil, fmt.Errorf("buffer: allocate page: %w", err)
	}

	frame := p.frames[frameID]
	frame.reset()
	frame.PageID = pageID
	frame.PinCount = 1

	p.pageTable[pageID] = frameID
	p.replacer.RecordAccess(frameID)
	p.replacer.SetEvictable(frameID, false)

	return pageID, frame, nil
}

// FetchPage returns the frame holding pageID, reading it from disk on
// a miss. Every call bumps the pin count by one; the caller must
// eventually call UnpinPage (or, more commonly, go through a guard).
func (p *Pool) FetchPage(pageID pagestore.PageID) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frameID, ok := p.pageTable[pageID]; ok {
		frame := p.frames[frameID]
		frame.PinCount++
		p.replacer.RecordAccess(frameID)
		p.replacer.SetEvictable(frameID, false)
		p.hits++
		return frame, nil
	}

	p.misses++
	if p.listener != nil {
		p.listener.OnFetchMiss(pageID)
	}

	frameID, err := p.pickFrame()
	if err != nil {
		return nil, err
	}

	frame := p.frames[frameID]
	frame.reset()
	frame.PageID = pageID
	frame.PinCount = 1

	future := p.scheduler.Schedule(&scheduler.Job{
		IsWrite: false,
		PageID:  pageID,
		Buffer:  frame.Data[:],
	})
	if err := future.Await(); err != nil {
		frame.reset()
		p.freeList = append(p.freeList, frameID)
		return nil, fmt.Errorf("buffer: read page %d: %w", pageID, err)
	}

	p.pageTable[pageID] = frameID
	p.replacer.RecordAccess(frameID)
	p.replacer.SetEvictable(frameID, false)

	return frame, nil
}

// UnpinPage decrements pageID's pin count and ORs in isDirty. When the
// pin count reaches zero the frame becomes a candidate for eviction.
// Returns false if pageID is invalid, not resident, or already
// unpinned.
func (p *Pool) UnpinPage(pageID pagestore.PageID, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pageID == pagestore.InvalidPageID {
		return false
	}
	frameID, ok := p.pageTable[pageID]
	if !ok {
		return false
	}
	frame := p.frames[frameID]
	if frame.PinCount == 0 {
		return false
	}

	frame.Dirty = frame.Dirty || isDirty
	frame.PinCount--
	if frame.PinCount == 0 {
		p.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes pageID's current bytes to disk and clears its
// dirty flag, without changing pin count or evictability. Returns
// false if pageID is not resident.
func (p *Pool) FlushPage(pageID pagestore.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(pageID)
}

// flushLocked assumes p.mu is held.
func (p *Pool) flushLocked(pageID pagestore.PageID) bool {
	frameID, ok := p.pageTable[pageID]
	if !ok {
		return false
	}
	frame := p.frames[frameID]

	future := p.scheduler.Schedule(&scheduler.Job{
		IsWrite: true,
		PageID:  pageID,
		Buffer:  frame.Data[:],
	})
	if err := future.Await(); err != nil {
		return false
	}
	frame.Dirty = false
	if p.listener != nil {
		p.listener.OnFlush(pageID)
	}
	return true
}

// FlushAllPages writes back every resident, valid page and clears its
// dirty flag.
func (p *Pool) FlushAllPages() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for pageID := range p.pageTable {
		p.flushLocked(pageID)
	}
}

// DeletePage removes pageID from the pool (returning its frame to the
// free list) and from disk. If pageID is resident and pinned, it
// returns false and changes nothing. If pageID is not resident, it is
// still deallocated on disk and the call succeeds.
func (p *Pool) DeletePage(pageID pagestore.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frameID, ok := p.pageTable[pageID]; ok {
		frame := p.frames[frameID]
		if frame.PinCount > 0 {
			return false
		}
		delete(p.pageTable, pageID)
		p.replacer.Remove(frameID)
		frame.reset()
		p.freeList = append(p.freeList, frameID)
	}

	if err := p.allocator.DeallocatePage(pageID); err != nil {
		return false
	}
	return true
}

// Stats is a point-in-time snapshot of pool counters, the shape of
// the teacher's BufferPool.Stats().
type Stats struct {
	PoolSize  int
	Resident  int
	Free      int
	Pinned    int
	Dirty     int
	Hits      int64
	Misses    int64
	Evictable int
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		PoolSize: len(p.frames),
		Resident: len(p.pageTable),
		Free:     len(p.freeList),
		Hits:     p.hits,
		Misses:   p.misses,
	}
	for _, f := range p.frames {
		if f.PinCount > 0 {
			s.Pinned++
		}
		if f.Dirty {
			s.Dirty++
		}
	}
	s.Evictable = p.replacer.Size()
	return s
}

// NewPageGuarded is NewPage's guard-returning variant. NewPage itself
// is also exported and returns an unguarded frame pointer, so the
// guard is not the only way to allocate a page.
func (p *Pool) NewPageGuarded() (pagestore.PageID, BasicGuard, error) {
	pageID, frame, err := p.NewPage()
	if err != nil {
		return pagestore.InvalidPageID, BasicGuard{}, err
	}
	return pageID, newBasicGuard(p, frame), nil
}

// FetchPageBasic fetches pageID and returns it wrapped in an
// unlatched guard.
func (p *Pool) FetchPageBasic(pageID pagestore.PageID) (BasicGuard, error) {
	frame, err := p.FetchPage(pageID)
	if err != nil {
		return BasicGuard{}, err
	}
	return newBasicGuard(p, frame), nil
}

// FetchPageRead fetches pageID and returns it wrapped in a guard
// holding the frame's reader latch.
func (p *Pool) FetchPageRead(pageID pagestore.PageID) (ReadGuard, error) {
	frame, err := p.FetchPage(pageID)
	if err != nil {
		return ReadGuard{}, err
	}
	return newReadGuard(p, frame), nil
}

// FetchPageWrite fetches pageID and returns it wrapped in a guard
// holding the frame's writer latch.
func (p *Pool) FetchPageWrite(pageID pagestore.PageID) (WriteGuard, error) {
	frame, err := p.FetchPage(pageID)
	if err != nil {
		return WriteGuard{}, err
	}
	return newWriteGuard(p, frame), nil
}
