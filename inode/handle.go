// Package inode implements the indexed multi-level inode layer: an
// on-disk inode record supporting direct, single-indirect, and
// double-indirect sector indexing, layered entirely on top of package
// cache. Inode sectors, index sectors, and data sectors are all cached
// by package cache uniformly; this package never calls package block
// directly.
package inode

import (
	"context"
	"sync"

	"github.com/yuhengfdada/pintofs/block"
	"github.com/yuhengfdada/pintofs/cache"
	"github.com/yuhengfdada/pintofs/errors"
	"github.com/yuhengfdada/pintofs/freemap"
	"github.com/yuhengfdada/pintofs/must"
)

// Handle is the in-memory state shared by every opener of the same
// on-disk inode. Handles are obtained and released exclusively through a
// Set, which enforces the invariant that at most one Handle exists per
// sector at a time.
type Handle struct {
	sector block.SectorID

	mu             sync.Mutex
	openCount      int
	denyWriteCount int
	removed        bool
	extending      bool
	notExtending   *sync.Cond
}

// Sector returns the sector containing h's on-disk inode record.
func (h *Handle) Sector() block.SectorID {
	return h.sector
}

// waitNotExtending blocks until no writer is mid-extension on h. Readers
// call this before translating offsets, so that byteToSector never
// observes a length update racing an in-progress index update;
// byteToSector is otherwise pure with respect to the inode mutex when no
// extension is in progress.
func (h *Handle) waitNotExtending() {
	h.mu.Lock()
	for h.extending {
		h.notExtending.Wait()
	}
	h.mu.Unlock()
}

// Set is the process-wide open-inode set: ref-counted in-memory handles
// keyed by inode sector, plus the cache and free map needed to service
// reads, writes, and deallocation. A Set has explicit construction and no
// lazy initialization.
type Set struct {
	c  *cache.Cache
	fm *freemap.Map

	mu      sync.Mutex
	byOpSec map[block.SectorID]*Handle
}

// NewSet creates an open-inode set backed by c and fm.
func NewSet(c *cache.Cache, fm *freemap.Map) *Set {
	return &Set{c: c, fm: fm, byOpSec: make(map[block.SectorID]*Handle)}
}

// Create constructs an on-disk inode at sector, provisioning length bytes
// of storage. sector must already be allocated by the caller (the
// free-map adapter has no notion of "the inode sector" versus "a data
// sector"); Create only allocates the data and index sectors
// allocateBlocks needs.
func (s *Set) Create(ctx context.Context, sector block.SectorID, length int64, isDir bool) error {
	must.Truef(length >= 0, "inode: Create: negative length %d", length)
	image := &disk{isDir: isDir}
	if err := allocateBlocks(ctx, s.c, s.fm, image, length); err != nil {
		return errors.E("inode: create", err)
	}
	buf := make([]byte, block.SectorBytes)
	image.encode(buf)
	s.c.Write(ctx, sector, buf, 0, block.SectorBytes)
	return nil
}

// Open returns the shared Handle for the inode at sector, materializing
// one and inserting it into the set if this is the first opener.
func (s *Set) Open(sector block.SectorID) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.byOpSec[sector]; ok {
		h.openCount++
		return h
	}
	h := &Handle{sector: sector, openCount: 1}
	h.notExtending = sync.NewCond(&h.mu)
	s.byOpSec[sector] = h
	return h
}

// Close decrements h's open count. When it reaches zero, h is unlinked
// from the set and, if Remove was called on it, its storage (inode
// sector and all transitively-indexed data/index sectors) is returned to
// the free map.
func (s *Set) Close(ctx context.Context, h *Handle) {
	s.mu.Lock()
	h.mu.Lock()
	h.openCount--
	last := h.openCount == 0
	removed := h.removed
	h.mu.Unlock()
	if last {
		delete(s.byOpSec, h.sector)
	}
	s.mu.Unlock()

	if last && removed {
		buf := make([]byte, block.SectorBytes)
		s.c.Read(ctx, h.sector, buf, 0, block.SectorBytes)
		image, err := decode(buf)
		must.Nilf(err, "inode: Close: decoding inode at sector %d for deallocation", h.sector)
		deallocateBlocks(ctx, s.c, s.fm, image)
		s.fm.Release(h.sector, 1)
	}
}

// Remove marks h for deletion. Actual deallocation is deferred to the
// last Close.
func (s *Set) Remove(h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = true
}

// DenyWrite increments h's deny-write count, used to protect a running
// executable's backing inode from concurrent writes.
func (s *Set) DenyWrite(h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.denyWriteCount++
	must.Truef(h.denyWriteCount <= h.openCount, "inode: DenyWrite: deny count %d exceeds open count %d", h.denyWriteCount, h.openCount)
}

// AllowWrite decrements h's deny-write count.
func (s *Set) AllowWrite(h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	must.Truef(h.denyWriteCount > 0, "inode: AllowWrite: deny count already zero")
	h.denyWriteCount--
}

// Length returns h's current on-disk length.
func (s *Set) Length(ctx context.Context, h *Handle) int64 {
	buf := make([]byte, block.SectorBytes)
	s.c.Read(ctx, h.sector, buf, 0, block.SectorBytes)
	image, err := decode(buf)
	must.Nilf(err, "inode: Length: decoding inode at sector %d", h.sector)
	return image.length
}

// IsDir returns whether h's inode is a directory.
func (s *Set) IsDir(ctx context.Context, h *Handle) bool {
	buf := make([]byte, block.SectorBytes)
	s.c.Read(ctx, h.sector, buf, 0, block.SectorBytes)
	image, err := decode(buf)
	must.Nilf(err, "inode: IsDir: decoding inode at sector %d", h.sector)
	return image.isDir
}

// byteToSector translates a byte offset within h's file to the sector
// that holds it, reading the on-disk inode and any needed indirect
// blocks through the cache. It returns block.NoSector if pos is at or
// past the file's current length.
func (s *Set) byteToSector(ctx context.Context, h *Handle, pos int64) block.SectorID {
	buf := make([]byte, block.SectorBytes)
	s.c.Read(ctx, h.sector, buf, 0, block.SectorBytes)
	image, err := decode(buf)
	must.Nilf(err, "inode: byteToSector: decoding inode at sector %d", h.sector)

	if pos >= image.length {
		return block.NoSector
	}
	b := int(pos / block.SectorBytes)
	switch {
	case b < nDirect:
		return image.direct[b]
	case b < nDirect+pointersPerBlock:
		s.c.Read(ctx, image.singleIndirect, buf, 0, block.SectorBytes)
		ptrs := decodeIndirect(buf)
		return ptrs[b-nDirect]
	default:
		s.c.Read(ctx, image.doubleIndirect, buf, 0, block.SectorBytes)
		outer := decodeIndirect(buf)
		rem := b - nDirect - pointersPerBlock
		inner := rem / pointersPerBlock
		s.c.Read(ctx, outer[inner], buf, 0, block.SectorBytes)
		innerPtrs := decodeIndirect(buf)
		return innerPtrs[rem%pointersPerBlock]
	}
}

// ReadAt copies up to len(dst) bytes of h's file starting at offset into
// dst, returning the number of bytes actually read (short of len(dst) at
// end of file).
func (s *Set) ReadAt(ctx context.Context, h *Handle, dst []byte, offset int64) int {
	must.Truef(offset >= 0, "inode: ReadAt: negative offset %d", offset)
	var read int
	for read < len(dst) {
		h.waitNotExtending()
		sector := s.byteToSector(ctx, h, offset+int64(read))
		if sector == block.NoSector {
			break
		}
		sectorOff := int((offset + int64(read)) % block.SectorBytes)
		chunk := block.SectorBytes - sectorOff
		if remaining := len(dst) - read; chunk > remaining {
			chunk = remaining
		}
		if inFile := s.Length(ctx, h) - (offset + int64(read)); int64(chunk) > inFile {
			chunk = int(inFile)
		}
		s.c.Read(ctx, sector, dst[read:read+chunk], sectorOff, chunk)
		read += chunk
	}
	return read
}

// WriteAt writes len(src) bytes of src into h's file starting at offset,
// extending the file (allocating new sectors and advancing length) as
// necessary. It returns the number of bytes actually written: on an
// extension failure partway through, this may be fewer than len(src),
// with no persistent state change beyond what was already durably
// written and indexed.
//
// The inode mutex is held across the entire extension critical section,
// never only across the length update: this is the simpler of the two
// viable designs, chosen over introducing a separate reader/writer
// protocol for the rare extension case.
func (s *Set) WriteAt(ctx context.Context, h *Handle, src []byte, offset int64) int {
	must.Truef(offset >= 0, "inode: WriteAt: negative offset %d", offset)
	h.mu.Lock()
	if h.denyWriteCount > 0 {
		h.mu.Unlock()
		return 0
	}

	end := offset + int64(len(src))
	if end > 0 && s.byteToSector(ctx, h, end-1) == block.NoSector {
		h.extending = true
		buf := make([]byte, block.SectorBytes)
		s.c.Read(ctx, h.sector, buf, 0, block.SectorBytes)
		image, err := decode(buf)
		must.Nilf(err, "inode: WriteAt: decoding inode at sector %d", h.sector)

		if aerr := allocateBlocks(ctx, s.c, s.fm, image, end); aerr != nil {
			h.extending = false
			h.notExtending.Broadcast()
			h.mu.Unlock()
			return 0
		}
		image.encode(buf)
		s.c.Write(ctx, h.sector, buf, 0, block.SectorBytes)
		h.extending = false
		h.notExtending.Broadcast()
	}
	defer h.mu.Unlock()

	var written int
	for written < len(src) {
		sector := s.byteToSector(ctx, h, offset+int64(written))
		must.Truef(sector != block.NoSector, "inode: WriteAt: sector translation failed after successful extension")
		sectorOff := int((offset + int64(written)) % block.SectorBytes)
		chunk := block.SectorBytes - sectorOff
		if remaining := len(src) - written; chunk > remaining {
			chunk = remaining
		}
		s.c.Write(ctx, sector, src[written:written+chunk], sectorOff, chunk)
		written += chunk
	}
	return written
}
