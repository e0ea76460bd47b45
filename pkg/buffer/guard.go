package buffer

import "github.com/mnohosten/pagecache/pkg/pagestore"

// BasicGuard is a move-only scoped handle bound to a (pool, frame)
// pair. Dropping it unpins the frame, using the frame's own Dirty
// flag as the dirty-write-back intent (spec.md section 9's design
// note: a single source of truth on the frame, not a second copy on
// the guard).
//
// Go has no compiler-enforced move semantics, so "move" here is the
// explicit transfer spec.md section 9 describes for languages without
// them: Move and the Upgrade* methods hand ownership to a new guard
// value and leave the receiver empty, so a second Drop on either the
// source or a copy of it is a no-op.
type BasicGuard struct {
	pool  *Pool
	frame *Frame
}

// newBasicGuard is used internally by the pool's guard-returning
// fetch/new variants.
func newBasicGuard(pool *Pool, frame *Frame) BasicGuard {
	return BasicGuard{pool: pool, frame: frame}
}

// take empties the guard and returns what it held, for use by Move
// and the Upgrade* methods.
func (g *BasicGuard) take() (*Pool, *Frame) {
	pool, frame := g.pool, g.frame
	g.pool, g.frame = nil, nil
	return pool, frame
}

// PageID returns the guarded page's id, or pagestore.InvalidPageID if
// the guard is empty.
func (g *BasicGuard) PageID() pagestore.PageID {
	if g.frame == nil {
		return pagestore.InvalidPageID
	}
	return g.frame.PageID
}

// Data returns the frame's bytes. Reading through a BasicGuard without
// first upgrading to a ReadGuard/WriteGuard is the caller's
// responsibility to synchronize; BasicGuard itself acquires no latch.
func (g *BasicGuard) Data() []byte {
	return g.frame.Data[:]
}

// Move transfers ownership to the returned guard, leaving the
// receiver empty.
func (g *BasicGuard) Move() BasicGuard {
	pool, frame := g.take()
	return BasicGuard{pool: pool, frame: frame}
}

// Drop releases the guard, unpinning the frame with its current dirty
// flag. Idempotent: a second Drop (or a Drop after Move/Upgrade took
// ownership) does nothing.
func (g *BasicGuard) Drop() {
	if g.frame == nil {
		return
	}
	pool, frame := g.take()
	pool.UnpinPage(frame.PageID, frame.Dirty)
}

// UpgradeRead acquires the frame's reader latch and transfers
// ownership to a new ReadGuard, leaving the receiver empty. The latch
// is acquired before ownership transfers, so a guard that is dropped
// mid-upgrade can never unpin an unlatched page (spec.md section
// 4.C).
func (g *BasicGuard) UpgradeRead() ReadGuard {
	g.frame.Latch.RLock()
	pool, frame := g.take()
	return ReadGuard{basic: BasicGuard{pool: pool, frame: frame}}
}

// UpgradeWrite acquires the frame's writer latch and transfers
// ownership to a new WriteGuard, leaving the receiver empty.
func (g *BasicGuard) UpgradeWrite() WriteGuard {
	g.frame.Latch.Lock()
	pool, frame := g.take()
	return WriteGuard{basic: BasicGuard{pool: pool, frame: frame}}
}

// ReadGuard wraps a BasicGuard, holding the frame's reader latch for
// its lifetime.
type ReadGuard struct {
	basic BasicGuard
}

// newReadGuard acquires the reader latch and wraps a fresh basic
// guard around (pool, frame).
func newReadGuard(pool *Pool, frame *Frame) ReadGuard {
	frame.Latch.RLock()
	return ReadGuard{basic: newBasicGuard(pool, frame)}
}

// PageID returns the guarded page's id.
func (g *ReadGuard) PageID() pagestore.PageID { return g.basic.PageID() }

// Data returns a read-only view of the frame's bytes, safe to read
// for as long as the guard is live.
func (g *ReadGuard) Data() []byte { return g.basic.Data() }

// Move transfers ownership (including the held latch) to the
// returned guard.
func (g *ReadGuard) Move() ReadGuard {
	basic := g.basic.Move()
	return ReadGuard{basic: basic}
}

// Drop releases the reader latch, then unpins the frame. Idempotent.
func (g *ReadGuard) Drop() {
	if g.basic.frame == nil {
		return
	}
	frame := g.basic.frame
	frame.Latch.RUnlock()
	g.basic.Drop()
}

// WriteGuard wraps a BasicGuard, holding the frame's writer latch for
// its lifetime and exposing a mutable byte view.
type WriteGuard struct {
	basic BasicGuard
}

// newWriteGuard acquires the writer latch and wraps a fresh basic
// guard around (pool, frame).
func newWriteGuard(pool *Pool, frame *Frame) WriteGuard {
	frame.Latch.Lock()
	return WriteGuard{basic: newBasicGuard(pool, frame)}
}

// PageID returns the guarded page's id.
func (g *WriteGuard) PageID() pagestore.PageID { return g.basic.PageID() }

// MutableData returns a mutable view of the frame's bytes and marks
// the frame dirty, since a caller asking for a mutable view intends
// to write through it.
func (g *WriteGuard) MutableData() []byte {
	g.basic.frame.Dirty = true
	return g.basic.frame.Data[:]
}

// Move transfers ownership (including the held latch) to the
// returned guard.
func (g *WriteGuard) Move() WriteGuard {
	basic := g.basic.Move()
	return WriteGuard{basic: basic}
}

// Drop releases the writer latch, then unpins the frame. Idempotent.
func (g *WriteGuard) Drop() {
	if g.basic.frame == nil {
		return
	}
	frame := g.basic.frame
	frame.Latch.Unlock()
	g.basic.Drop()
}
