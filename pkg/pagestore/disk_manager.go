package pagestore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// DiskManager handles physical disk I/O for pages and owns the
// monotonic page-id allocator. Records are appended rather than
// written at a fixed pageID*PageSize offset, because the optional
// codec (see codec.go) can change a record's on-disk length; an
// in-memory directory maps each page id to the offset of its most
// recent record. Page ids themselves are never reused, matching the
// allocator contract in spec.md section 6; the directory is rebuilt
// fresh each process lifetime rather than recovered from an existing
// file, consistent with spec.md's non-goal of crash consistency
// stronger than "flush writes the current byte image".
type DiskManager struct {
	mu          sync.Mutex
	file        *os.File
	codec       *codec
	nextPageID  PageID
	directory   map[PageID]int64 // pageID -> offset of its length-prefixed record
	totalReads  int64
	totalWrites int64
	freedCount  int64
}

// NewDiskManager opens (creating if necessary) the backing file at
// path and prepares a fresh page-id space. codecCfg configures the
// optional compression/encryption applied to bytes as they cross the
// disk boundary.
func NewDiskManager(path string, codecCfg CodecConfig) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open data file: %w", err)
	}

	c, err := newCodec(codecCfg)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &DiskManager{
		file:      file,
		codec:     c,
		directory: make(map[PageID]int64),
	}, nil
}

// AllocatePage hands out a fresh, never-before-used page id. The page
// has no on-disk record until the first WritePage.
func (dm *DiskManager) AllocatePage() (PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	id := dm.nextPageID
	dm.nextPageID++
	return id, nil
}

// DeallocatePage drops pageID's directory entry. Its disk record, if
// any, is left in place (no compaction is attempted — page-content
// layout and reclamation are among this subsystem's non-goals) but
// becomes unreachable through this DiskManager.
func (dm *DiskManager) DeallocatePage(pageID PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if pageID == InvalidPageID {
		return fmt.Errorf("pagestore: cannot deallocate invalid page id")
	}
	delete(dm.directory, pageID)
	dm.freedCount++
	return nil
}

// ReadPage reads pageID's current bytes into data, which must be
// exactly PageSize bytes. A page id with no record yet (allocated but
// never written) reads back as all zero, matching a freshly zeroed
// frame.
func (dm *DiskManager) ReadPage(pageID PageID, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("pagestore: read buffer must be %d bytes, got %d", PageSize, len(data))
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset, ok := dm.directory[pageID]
	if !ok {
		for i := range data {
			data[i] = 0
		}
		return nil
	}

	lenBuf := make([]byte, 4)
	if _, err := dm.file.ReadAt(lenBuf, offset); err != nil {
		return fmt.Errorf("pagestore: read record length for page %d: %w", pageID, err)
	}
	recordLen := binary.LittleEndian.Uint32(lenBuf)

	stored := make([]byte, recordLen)
	if _, err := dm.file.ReadAt(stored, offset+4); err != nil {
		return fmt.Errorf("pagestore: read record for page %d: %w", pageID, err)
	}

	plain, err := dm.codec.decode(stored)
	if err != nil {
		return fmt.Errorf("pagestore: decode page %d: %w", pageID, err)
	}
	if len(plain) != PageSize {
		return fmt.Errorf("pagestore: decoded page %d has size %d, expected %d", pageID, len(plain), PageSize)
	}

	copy(data, plain)
	dm.totalReads++
	return nil
}

// WritePage appends pageID's current bytes as a new record and
// repoints the directory at it.
func (dm *DiskManager) WritePage(pageID PageID, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("pagestore: write buffer must be %d bytes, got %d", PageSize, len(data))
	}

	encoded, err := dm.codec.encode(data)
	if err != nil {
		return fmt.Errorf("pagestore: encode page %d: %w", pageID, err)
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset, err := dm.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("pagestore: seek to end: %w", err)
	}

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(encoded)))
	if _, err := dm.file.WriteAt(lenBuf, offset); err != nil {
		return fmt.Errorf("pagestore: write record length for page %d: %w", pageID, err)
	}
	if _, err := dm.file.WriteAt(encoded, offset+4); err != nil {
		return fmt.Errorf("pagestore: write record for page %d: %w", pageID, err)
	}

	dm.directory[pageID] = offset
	dm.totalWrites++
	return nil
}

// Sync flushes buffered writes to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.file.Sync()
}

// Close syncs and closes the backing file.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if err := dm.file.Sync(); err != nil {
		return err
	}
	return dm.file.Close()
}

// Stats reports disk manager counters, in the shape of the teacher's
// DiskManager.Stats().
type Stats struct {
	NextPageID  PageID
	LiveRecords int
	FreedPages  int64
	TotalReads  int64
	TotalWrites int64
}

// Stats returns a snapshot of disk manager counters.
func (dm *DiskManager) Stats() Stats {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return Stats{
		NextPageID:  dm.nextPageID,
		LiveRecords: len(dm.directory),
		FreedPages:  dm.freedCount,
		TotalReads:  dm.totalReads,
		TotalWrites: dm.totalWrites,
	}
}
