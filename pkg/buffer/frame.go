package buffer

import (
	"sync"

	"github.com/mnohosten/pagecache/pkg/pagestore"
	"github.com/mnohosten/pagecache/pkg/replacer"
)

// Frame is a fixed-size slot in the pool holding one page image and
// its metadata. Frame-ids are dense and fixed at pool construction.
//
// Dirty tracking lives only here, on the frame, per the design note
// in spec.md section 9: the write guard's mutator marks this flag
// directly instead of the guard carrying its own copy, eliminating
// the case where a read guard's drop could propagate a stale value.
type Frame struct {
	ID       replacer.FrameID
	PageID   pagestore.PageID
	Data     [pagestore.PageSize]byte
	PinCount int
	Dirty    bool

	// Latch guards Data for consumers holding a read or write guard.
	// The buffer pool's own mutex never protects page bytes, only
	// metadata (spec.md section 5).
	Latch sync.RWMutex
}

func (f *Frame) reset() {
	for i := range f.Data {
		f.Data[i] = 0
	}
	f.PageID = pagestore.InvalidPageID
	f.PinCount = 0
	f.Dirty = false
}
