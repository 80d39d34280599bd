package block

import (
	"context"
	"os"

	"github.com/yuhengfdada/pintofs/errors"
	"github.com/yuhengfdada/pintofs/log"
	"github.com/yuhengfdada/pintofs/must"
)

// fileDevice is a Device backed by a regular file via ReadAt/WriteAt,
// the real analogue of Pintos's raw disk partition.
type fileDevice struct {
	f        *os.File
	nSectors SectorID
}

// NewFileDevice opens (creating if necessary) the file at path as a
// Device with the given sector count, growing it to exactly
// nSectors*SectorBytes if it is smaller.
func NewFileDevice(path string, nSectors int) (Device, error) {
	must.Truef(nSectors > 0, "block: NewFileDevice: nSectors=%d must be positive", nSectors)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.E(errors.NotExist, "opening device file", err)
	}
	size := int64(nSectors) * SectorBytes
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.E("stat device file", err)
	}
	if fi.Size() < size {
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, errors.E("growing device file", err)
		}
	}
	log.Debug.Printf("block: opened device %s (%d sectors)", path, nSectors)
	return &fileDevice{f: f, nSectors: SectorID(nSectors)}, nil
}

func (d *fileDevice) ReadSector(ctx context.Context, sector SectorID, dst []byte) error {
	must.Truef(len(dst) == SectorBytes, "block: ReadSector: dst has length %d, want %d", len(dst), SectorBytes)
	_, err := d.f.ReadAt(dst, int64(sector)*SectorBytes)
	if err != nil {
		return errors.E(errors.Fatal, "reading sector", err)
	}
	return nil
}

func (d *fileDevice) WriteSector(ctx context.Context, sector SectorID, src []byte) error {
	must.Truef(len(src) == SectorBytes, "block: WriteSector: src has length %d, want %d", len(src), SectorBytes)
	_, err := d.f.WriteAt(src, int64(sector)*SectorBytes)
	if err != nil {
		return errors.E("writing sector", err)
	}
	return nil
}

func (d *fileDevice) NumSectors() SectorID {
	return d.nSectors
}

// Close closes the underlying file. Callers should call this only after
// fs.Shutdown has flushed the cache.
func (d *fileDevice) Close() error {
	return d.f.Close()
}
