package inode

import (
	"context"

	"github.com/yuhengfdada/pintofs/block"
	"github.com/yuhengfdada/pintofs/cache"
	"github.com/yuhengfdada/pintofs/errors"
	"github.com/yuhengfdada/pintofs/freemap"
)

// sectorsFor returns the number of data sectors needed to hold length
// bytes.
func sectorsFor(length int64) int {
	return int((length + block.SectorBytes - 1) / block.SectorBytes)
}

// allocator tracks every sector allocated during a single call to
// allocateBlocks, so that a failure partway through can release exactly
// what this call itself allocated — never more, never less. The free
// map's allocated set must be unchanged from before the call if
// allocation ultimately fails.
type allocator struct {
	fm       *freemap.Map
	acquired []block.SectorID
}

func (a *allocator) allocate() (block.SectorID, error) {
	s, err := a.fm.Allocate(1)
	if err != nil {
		return 0, err
	}
	a.acquired = append(a.acquired, s)
	return s, nil
}

func (a *allocator) rollback() {
	for _, s := range a.acquired {
		a.fm.Release(s, 1)
	}
	a.acquired = nil
}

// allocateBlocks provisions all data and index sectors needed for image
// to hold length bytes, populating direct, singleIndirect, and
// doubleIndirect as needed, and zero-filling every newly allocated data
// sector through c. image.length is set to length on success.
//
// On any allocation failure, every sector this call allocated (data and
// index blocks alike) is released back to fm before the error is
// returned, and image is left unmodified from the caller's perspective:
// callers must not persist a partially-populated image.
func allocateBlocks(ctx context.Context, c *cache.Cache, fm *freemap.Map, image *disk, length int64) error {
	want := sectorsFor(length)
	have := sectorsFor(image.length)
	if want <= have {
		image.length = length
		return nil
	}

	a := &allocator{fm: fm}
	next := &disk{
		length:         image.length,
		isDir:          image.isDir,
		direct:         image.direct,
		singleIndirect: image.singleIndirect,
		doubleIndirect: image.doubleIndirect,
	}

	if err := growDirect(ctx, c, a, next, have, want); err != nil {
		a.rollback()
		return err
	}
	if err := growSingleIndirect(ctx, c, a, next, have, want); err != nil {
		a.rollback()
		return err
	}
	if err := growDoubleIndirect(ctx, c, a, next, have, want); err != nil {
		a.rollback()
		return err
	}

	next.length = length
	*image = *next
	return nil
}

// zeroFillSector allocates a fresh data sector and writes a full sector
// of zeros to it through the cache (a blind write, since it overwrites
// the whole sector).
func zeroFillSector(ctx context.Context, c *cache.Cache, a *allocator) (block.SectorID, error) {
	s, err := a.allocate()
	if err != nil {
		return 0, err
	}
	var zero [block.SectorBytes]byte
	c.Write(ctx, s, zero[:], 0, block.SectorBytes)
	return s, nil
}

func growDirect(ctx context.Context, c *cache.Cache, a *allocator, next *disk, have, want int) error {
	limit := want
	if limit > nDirect {
		limit = nDirect
	}
	for b := have; b < limit; b++ {
		s, err := zeroFillSector(ctx, c, a)
		if err != nil {
			return err
		}
		next.direct[b] = s
	}
	return nil
}

func growSingleIndirect(ctx context.Context, c *cache.Cache, a *allocator, next *disk, have, want int) error {
	if want <= nDirect {
		return nil
	}
	wantSingle := want - nDirect
	if wantSingle > pointersPerBlock {
		wantSingle = pointersPerBlock
	}
	haveSingle := have - nDirect
	if haveSingle < 0 {
		haveSingle = 0
	}
	if wantSingle <= haveSingle {
		return nil
	}

	var ptrs [pointersPerBlock]block.SectorID
	if next.singleIndirect == 0 && haveSingle == 0 {
		s, err := a.allocate()
		if err != nil {
			return err
		}
		next.singleIndirect = s
	} else {
		buf := make([]byte, block.SectorBytes)
		c.Read(ctx, next.singleIndirect, buf, 0, block.SectorBytes)
		ptrs = decodeIndirect(buf)
	}
	for b := haveSingle; b < wantSingle; b++ {
		s, err := zeroFillSector(ctx, c, a)
		if err != nil {
			return err
		}
		ptrs[b] = s
	}
	buf := make([]byte, block.SectorBytes)
	encodeIndirect(ptrs[:], buf)
	c.Write(ctx, next.singleIndirect, buf, 0, block.SectorBytes)
	return nil
}

func growDoubleIndirect(ctx context.Context, c *cache.Cache, a *allocator, next *disk, have, want int) error {
	threshold := nDirect + pointersPerBlock
	if want <= threshold {
		return nil
	}
	wantDouble := want - threshold
	haveDouble := have - threshold
	if haveDouble < 0 {
		haveDouble = 0
	}
	if wantDouble > pointersPerBlock*pointersPerBlock {
		return errors.E(errors.ResourcesExhausted, "inode: file exceeds maximum size")
	}
	if wantDouble <= haveDouble {
		return nil
	}

	var outer [pointersPerBlock]block.SectorID
	if next.doubleIndirect == 0 && haveDouble == 0 {
		s, err := a.allocate()
		if err != nil {
			return err
		}
		next.doubleIndirect = s
	} else {
		buf := make([]byte, block.SectorBytes)
		c.Read(ctx, next.doubleIndirect, buf, 0, block.SectorBytes)
		outer = decodeIndirect(buf)
	}

	firstInner := haveDouble / pointersPerBlock
	lastInner := (wantDouble - 1) / pointersPerBlock
	for inner := firstInner; inner <= lastInner; inner++ {
		innerHave := 0
		if inner == firstInner {
			innerHave = haveDouble % pointersPerBlock
		}
		innerWant := pointersPerBlock
		if inner == lastInner {
			innerWant = ((wantDouble - 1) % pointersPerBlock) + 1
		}

		var inptrs [pointersPerBlock]block.SectorID
		if outer[inner] == 0 && innerHave == 0 {
			s, err := a.allocate()
			if err != nil {
				return err
			}
			outer[inner] = s
		} else {
			buf := make([]byte, block.SectorBytes)
			c.Read(ctx, outer[inner], buf, 0, block.SectorBytes)
			inptrs = decodeIndirect(buf)
		}
		for b := innerHave; b < innerWant; b++ {
			s, err := zeroFillSector(ctx, c, a)
			if err != nil {
				return err
			}
			inptrs[b] = s
		}
		buf := make([]byte, block.SectorBytes)
		encodeIndirect(inptrs[:], buf)
		c.Write(ctx, outer[inner], buf, 0, block.SectorBytes)
	}

	buf := make([]byte, block.SectorBytes)
	encodeIndirect(outer[:], buf)
	c.Write(ctx, next.doubleIndirect, buf, 0, block.SectorBytes)
	return nil
}

// deallocateBlocks releases every data and index sector indexed by d back
// to fm. It is called once, at last-close time, for an inode marked
// removed.
func deallocateBlocks(ctx context.Context, c *cache.Cache, fm *freemap.Map, d *disk) {
	n := sectorsFor(d.length)

	nDirectUsed := n
	if nDirectUsed > nDirect {
		nDirectUsed = nDirect
	}
	for b := 0; b < nDirectUsed; b++ {
		fm.Release(d.direct[b], 1)
	}
	if n <= nDirect {
		return
	}

	nSingle := n - nDirect
	if nSingle > pointersPerBlock {
		nSingle = pointersPerBlock
	}
	buf := make([]byte, block.SectorBytes)
	c.Read(ctx, d.singleIndirect, buf, 0, block.SectorBytes)
	single := decodeIndirect(buf)
	for b := 0; b < nSingle; b++ {
		fm.Release(single[b], 1)
	}
	fm.Release(d.singleIndirect, 1)
	if n <= nDirect+pointersPerBlock {
		return
	}

	nDouble := n - nDirect - pointersPerBlock
	c.Read(ctx, d.doubleIndirect, buf, 0, block.SectorBytes)
	outer := decodeIndirect(buf)
	remaining := nDouble
	for inner := 0; remaining > 0; inner++ {
		innerCount := remaining
		if innerCount > pointersPerBlock {
			innerCount = pointersPerBlock
		}
		inbuf := make([]byte, block.SectorBytes)
		c.Read(ctx, outer[inner], inbuf, 0, block.SectorBytes)
		inptrs := decodeIndirect(inbuf)
		for b := 0; b < innerCount; b++ {
			fm.Release(inptrs[b], 1)
		}
		fm.Release(outer[inner], 1)
		remaining -= innerCount
	}
	fm.Release(d.doubleIndirect, 1)
}
