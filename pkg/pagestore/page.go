// Package pagestore is the disk-backed page store consumed by the
// buffer pool: a page-id allocator and raw page read/write, with an
// optional compression/encryption codec applied to the bytes that hit
// disk. It does not know about frames, pinning, or eviction — that is
// the buffer pool's job.
package pagestore

// PageSize is the fixed size, in bytes, of every page image. It is a
// compile-time constant, matching the teacher's 4KB page.
const PageSize = 4096

// PageID identifies a page on disk. Ids are handed out by
// DiskManager.AllocatePage and are never reused within a process
// lifetime.
type PageID uint64

// InvalidPageID is the distinguished sentinel meaning "no page".
const InvalidPageID PageID = ^PageID(0)
