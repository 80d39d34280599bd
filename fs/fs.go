// Package fs is the boundary glue composing the free map, the cache, and
// the inode layer into a mountable file system: it owns the sectors
// reserved for the free map's own persistence and for the root
// directory, and it is the only package that constructs a cache.Cache or
// freemap.Map directly.
package fs

import (
	"context"

	"github.com/yuhengfdada/pintofs/block"
	"github.com/yuhengfdada/pintofs/cache"
	"github.com/yuhengfdada/pintofs/ctxsync"
	"github.com/yuhengfdada/pintofs/errors"
	"github.com/yuhengfdada/pintofs/freemap"
	"github.com/yuhengfdada/pintofs/inode"
	"github.com/yuhengfdada/pintofs/log"
)

// FS is a mounted file system: a cache over a device, a free-sector map,
// and the process-wide open-inode set built on top of them.
type FS struct {
	dev   block.Device
	Cache *cache.Cache
	Free  *freemap.Map
	Inode *inode.Set

	rootSector block.SectorID

	admin ctxsync.Mutex
}

// Init mounts dev as a file system with nSlots cache slots. If format is
// true, the free map and root directory are (re)created from scratch,
// exactly as a fresh format would: every sector is marked free except
// those reserved for the free map's own persistence and the root
// directory, and a zero-length directory inode is written at the root
// sector. If format is false, the free map is loaded back from its
// reserved sectors.
func Init(ctx context.Context, dev block.Device, nSlots int, format bool) (*FS, error) {
	nSector := int(dev.NumSectors())
	freeMapSectors := freemap.SectorsNeeded(nSector)
	rootSector := block.SectorID(freeMapSectors)
	if int(rootSector)+1 > nSector {
		return nil, errors.E(errors.Invalid, "fs: device too small for free map and root directory")
	}

	c := cache.New(dev, nSlots)

	var fm *freemap.Map
	var err error
	if format {
		fm = freemap.New(nSector)
		fm.MarkUsed(0, freeMapSectors+1) // free-map sectors + root sector
	} else {
		fm, err = freemap.Load(ctx, dev, 0, nSector)
		if err != nil {
			return nil, errors.E("fs: loading free map", err)
		}
	}

	set := inode.NewSet(c, fm)
	if format {
		if err := set.Create(ctx, rootSector, 0, true); err != nil {
			return nil, errors.E("fs: creating root directory", err)
		}
		log.Info.Printf("fs: formatted %d sectors, root directory at sector %d", nSector, rootSector)
	}

	return &FS{
		dev:        dev,
		Cache:      c,
		Free:       fm,
		Inode:      set,
		rootSector: rootSector,
	}, nil
}

// RootDirectorySector returns the sector containing the root directory's
// inode record.
func (f *FS) RootDirectorySector() block.SectorID {
	return f.rootSector
}

// Shutdown flushes the cache and persists the free map. ctx may carry a
// deadline for the administrative lock guarding against a concurrent
// Shutdown; the flush and save themselves are not cancelable.
func (f *FS) Shutdown(ctx context.Context) error {
	if err := f.admin.Lock(ctx); err != nil {
		return err
	}
	defer f.admin.Unlock()

	f.Cache.Flush(ctx)
	if err := freemap.Save(ctx, f.dev, 0, f.Free); err != nil {
		return errors.E("fs: saving free map", err)
	}
	log.Info.Print("fs: shutdown complete, free map persisted")
	return nil
}
