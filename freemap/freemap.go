// Package freemap implements the free-sector bitmap: a single
// contiguous-run allocator
// tracking which sectors on the underlying block.Device are in use.
//
// A Map's bitmap lives entirely in memory; Load and Save move it to and
// from a reserved run of sectors at the front of the device, using the
// device directly rather than through the buffer cache. This mirrors the
// original design's free-map file being read once at mount and written
// back once at unmount, and keeps the cache's sector space limited to
// inode and data sectors.
package freemap

import (
	"context"
	"encoding/binary"

	"github.com/yuhengfdada/pintofs/bitset"
	"github.com/yuhengfdada/pintofs/block"
	"github.com/yuhengfdada/pintofs/errors"
	"github.com/yuhengfdada/pintofs/must"
)

// bitsPerSector is the number of bitmap bits a single sector can record.
const bitsPerSector = block.SectorBytes * 8

// Map is a free-sector bitmap over a fixed number of sectors. A Map is
// not safe for concurrent use; callers (package fs) serialize access to
// it, since allocation only happens under the inode layer's own growth
// path, which already holds the relevant inode lock.
type Map struct {
	bits    []uintptr
	nSector int
}

// NumSectors returns the number of sectors n passed to New that this Map
// was constructed to track.
func (m *Map) NumSectors() int {
	return m.nSector
}

// SectorsNeeded returns the number of device sectors required to persist
// a free map tracking nSector sectors.
func SectorsNeeded(nSector int) int {
	return (nSector + bitsPerSector - 1) / bitsPerSector
}

// New creates a Map tracking nSector sectors, all initially free.
func New(nSector int) *Map {
	must.Truef(nSector > 0, "freemap: New: nSector=%d must be positive", nSector)
	return &Map{bits: bitset.NewClearBits(nSector), nSector: nSector}
}

// MarkUsed marks the run [start, start+n) as allocated, without
// consulting or updating contiguity invariants. It is used during format
// to reserve the sectors the free map itself and the root directory
// occupy before any ordinary allocation happens.
func (m *Map) MarkUsed(start block.SectorID, n int) {
	must.Truef(int(start)+n <= m.nSector, "freemap: MarkUsed: [%d,%d) exceeds %d sectors", start, int(start)+n, m.nSector)
	bitset.SetInterval(m.bits, int(start), int(start)+n)
}

// Allocate finds and marks used the first free run of n contiguous
// sectors, returning its starting sector. It returns an
// errors.ResourcesExhausted error if no such run exists.
func (m *Map) Allocate(n int) (block.SectorID, error) {
	must.Truef(n > 0, "freemap: Allocate: n=%d must be positive", n)
	run := 0
	for i := 0; i < m.nSector; i++ {
		if bitset.Test(m.bits, i) {
			run = 0
			continue
		}
		run++
		if run == n {
			start := i - n + 1
			bitset.SetInterval(m.bits, start, start+n)
			return block.SectorID(start), nil
		}
	}
	return 0, errors.E(errors.ResourcesExhausted, "freemap: no free run of sectors available")
}

// Release marks the run [start, start+n) free again. It is a
// precondition violation to release any sector twice or any sector never
// allocated; both would indicate corruption of the file system's own
// bookkeeping, not a recoverable condition.
func (m *Map) Release(start block.SectorID, n int) {
	must.Truef(int(start)+n <= m.nSector, "freemap: Release: [%d,%d) exceeds %d sectors", start, int(start)+n, m.nSector)
	for i := int(start); i < int(start)+n; i++ {
		must.Truef(bitset.Test(m.bits, i), "freemap: Release: sector %d was already free", i)
	}
	bitset.ClearInterval(m.bits, int(start), int(start)+n)
}

// Load reads a Map tracking nSector sectors from the SectorsNeeded(nSector)
// sectors starting at startSector on dev, bypassing the buffer cache.
func Load(ctx context.Context, dev block.Device, startSector block.SectorID, nSector int) (*Map, error) {
	m := New(nSector)
	buf := make([]byte, block.SectorBytes)
	nWordsPerSector := bitsPerSector / bitset.BitsPerWord
	for s := 0; s < SectorsNeeded(nSector); s++ {
		if err := dev.ReadSector(ctx, startSector+block.SectorID(s), buf); err != nil {
			return nil, errors.E("freemap: loading bitmap sector", err)
		}
		for w := 0; w < nWordsPerSector; w++ {
			idx := s*nWordsPerSector + w
			if idx >= len(m.bits) {
				break
			}
			m.bits[idx] = uintptr(binary.LittleEndian.Uint64(buf[w*8 : w*8+8]))
		}
	}
	return m, nil
}

// Save writes m to the SectorsNeeded(m.nSector) sectors starting at
// startSector on dev, bypassing the buffer cache.
func Save(ctx context.Context, dev block.Device, startSector block.SectorID, m *Map) error {
	buf := make([]byte, block.SectorBytes)
	nWordsPerSector := bitsPerSector / bitset.BitsPerWord
	for s := 0; s < SectorsNeeded(m.nSector); s++ {
		for i := range buf {
			buf[i] = 0
		}
		for w := 0; w < nWordsPerSector; w++ {
			idx := s*nWordsPerSector + w
			if idx >= len(m.bits) {
				break
			}
			binary.LittleEndian.PutUint64(buf[w*8:w*8+8], uint64(m.bits[idx]))
		}
		if err := dev.WriteSector(ctx, startSector+block.SectorID(s), buf); err != nil {
			return errors.E("freemap: saving bitmap sector", err)
		}
	}
	return nil
}
