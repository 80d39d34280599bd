// Package cache implements the fixed-capacity, write-back, LRU-replacement
// buffer cache sitting between the inode layer and the raw block device:
// a cache of N sector-sized slots with at-most-one-inflight-I/O per slot
// and reader/writer coalescing through sector sharing.
//
// Cache is the only component that reads and writes inode, index, and
// data sectors on a block.Device; everything above Cache addresses those
// sectors purely through Read, Write, and Flush. Package freemap's Load
// and Save are the one other user of a Device, persisting the free-sector
// bitmap directly.
package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/yuhengfdada/pintofs/block"
	"github.com/yuhengfdada/pintofs/log"
	"github.com/yuhengfdada/pintofs/must"
)

// slot is one entry of the cache's fixed array. Its fields are guarded by
// the owning Cache's mu, except data, which a thread performing I/O on
// the slot may touch without holding mu (the slot's ready=false state is
// itself the exclusion mechanism: other goroutines that find the slot
// wait on waitReady instead of touching it; see access).
type slot struct {
	assigned  bool
	sector    block.SectorID
	data      []byte
	dirty     bool
	ready     bool
	waitReady *sync.Cond    // broadcast when this slot's ready flips true
	elem      *list.Element // this slot's node in the cache's LRU list
}

// Cache is a fixed-capacity write-back buffer cache over a block.Device.
// A *Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	dev block.Device

	mu            sync.Mutex
	slots         []*slot
	lru           *list.List // front = most recently used, back = least
	someSlotReady *sync.Cond

	hits, accesses uint64
}

// New creates a Cache of nSlots slots over dev. This is the access
// layer's init(): all slots start ready, clean, and unassigned, linked
// into the LRU list in slot-index order, and the counters start at zero.
func New(dev block.Device, nSlots int) *Cache {
	must.Truef(nSlots > 0, "cache: New: nSlots=%d must be positive", nSlots)
	c := &Cache{
		dev:   dev,
		slots: make([]*slot, nSlots),
		lru:   list.New(),
	}
	c.someSlotReady = sync.NewCond(&c.mu)
	for i := range c.slots {
		s := &slot{
			data:  make([]byte, block.SectorBytes),
			ready: true,
		}
		s.waitReady = sync.NewCond(&c.mu)
		s.elem = c.lru.PushFront(s)
		c.slots[i] = s
	}
	return c
}

// Read copies [offset, offset+length) bytes of sector into dst.
func (c *Cache) Read(ctx context.Context, sector block.SectorID, dst []byte, offset, length int) {
	must.Truef(offset+length <= block.SectorBytes, "cache: Read: offset=%d length=%d exceeds sector", offset, length)
	must.Truef(length >= 0, "cache: Read: negative length %d", length)
	s := c.access(ctx, sector, false)
	copy(dst, s.data[offset:offset+length])
	c.mu.Unlock()
}

// Write copies length bytes from src into sector's image at
// [offset, offset+length), and marks the slot dirty.
func (c *Cache) Write(ctx context.Context, sector block.SectorID, src []byte, offset, length int) {
	must.Truef(offset+length <= block.SectorBytes, "cache: Write: offset=%d length=%d exceeds sector", offset, length)
	must.Truef(length >= 0, "cache: Write: negative length %d", length)
	blind := offset == 0 && length == block.SectorBytes
	s := c.access(ctx, sector, blind)
	copy(s.data[offset:offset+length], src[:length])
	s.dirty = true
	c.mu.Unlock()
}

// Flush writes back every slot dirty at the moment Flush begins its scan.
// It does not guarantee anything about writes initiated after Flush
// began.
func (c *Cache) Flush(ctx context.Context) {
	c.mu.Lock()
	targets := make([]*slot, 0, len(c.slots))
	for _, s := range c.slots {
		if s.dirty {
			targets = append(targets, s)
		}
	}
	for _, s := range targets {
		for !s.ready {
			s.waitReady.Wait()
		}
		if s.dirty {
			c.writeback(ctx, s)
		}
	}
	c.mu.Unlock()
}

// HitCount returns the number of accesses whose very first slot lookup
// found the sector already present.
func (c *Cache) HitCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// AccessCount returns the total number of Read/Write calls served.
func (c *Cache) AccessCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accesses
}

// Reset clears the hit/access counters and logically invalidates every
// slot (unassigned, clean, ready). It is intended for use between test
// phases; callers are responsible for not racing Reset with live I/O.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.accesses = 0, 0
	for _, s := range c.slots {
		s.assigned = false
		s.dirty = false
		s.ready = true
	}
}

// access implements the cache's core loop: find-or-evict-and-fetch,
// returning the slot holding sector with c.mu still held by the caller,
// who is responsible for unlocking it once done copying to/from
// s.data. blind, when true, permits the blind-write optimization: an
// evicted clean victim is rebound to sector without a disk read.
func (c *Cache) access(ctx context.Context, sector block.SectorID, blind bool) *slot {
	c.mu.Lock()
	c.accesses++
	firstAttempt := true
	for {
		if s := c.find(sector); s != nil {
			if !s.ready {
				s.waitReady.Wait()
				continue
			}
			if firstAttempt {
				c.hits++
			}
			c.lru.MoveToFront(s.elem)
			return s
		}
		firstAttempt = false

		victim := c.lruBackSkippingNotReady()
		if victim == nil {
			c.someSlotReady.Wait()
			continue
		}
		if victim.dirty {
			c.writeback(ctx, victim)
			continue
		}
		if blind {
			victim.assigned = true
			victim.sector = sector
			continue
		}
		c.fetch(ctx, victim, sector)
	}
}

// find returns the slot currently bound to sector, or nil.
func (c *Cache) find(sector block.SectorID) *slot {
	for _, s := range c.slots {
		if s.assigned && s.sector == sector {
			return s
		}
	}
	return nil
}

// lruBackSkippingNotReady returns the least-recently-used slot that is
// ready, scanning from the back of the LRU list, or nil if every slot is
// currently the target of in-flight I/O.
func (c *Cache) lruBackSkippingNotReady() *slot {
	for e := c.lru.Back(); e != nil; e = e.Prev() {
		s := e.Value.(*slot)
		if s.ready {
			return s
		}
	}
	return nil
}

// writeback evicts a dirty slot: it releases c.mu across the device
// write and reacquires it before returning. Callers must re-validate any
// slot state they cared about before the call.
func (c *Cache) writeback(ctx context.Context, s *slot) {
	s.ready = false
	sector, data := s.sector, s.data
	c.mu.Unlock()
	log.Debug.Printf("cache: writing back sector %d", sector)
	if err := c.dev.WriteSector(ctx, sector, data); err != nil {
		log.Error.Printf("cache: writeback of sector %d failed: %v", sector, err)
		must.Never("cache: device write failed, treating as fatal")
	}
	c.mu.Lock()
	s.dirty = false
	s.ready = true
	s.waitReady.Broadcast()
	c.someSlotReady.Broadcast()
}

// fetch binds a clean victim slot to sector and reads its contents from
// the device, releasing c.mu across the I/O as writeback does.
func (c *Cache) fetch(ctx context.Context, s *slot, sector block.SectorID) {
	must.Truef(!s.dirty, "cache: fetch: victim slot is dirty")
	s.assigned = true
	s.sector = sector
	s.ready = false
	data := s.data
	c.mu.Unlock()
	log.Debug.Printf("cache: fetching sector %d", sector)
	if err := c.dev.ReadSector(ctx, sector, data); err != nil {
		log.Error.Printf("cache: fetch of sector %d failed: %v", sector, err)
		must.Never("cache: device read failed, treating as fatal")
	}
	c.mu.Lock()
	s.ready = true
	s.waitReady.Broadcast()
	c.someSlotReady.Broadcast()
}
