package block

import (
	"context"
	"sync"

	"github.com/yuhengfdada/pintofs/errors"
	"github.com/yuhengfdada/pintofs/must"
)

// memDevice is an in-memory Device, analogous to package file's
// localFile sitting alongside its s3 implementation: a small, dependency
// free stand-in used by tests and by callers that don't need real
// persistence.
type memDevice struct {
	mu   sync.Mutex
	data [][]byte
}

// NewMemDevice returns a Device backed by nSectors sectors of
// zero-filled memory.
func NewMemDevice(nSectors int) Device {
	must.Truef(nSectors > 0, "block: NewMemDevice: nSectors=%d must be positive", nSectors)
	data := make([][]byte, nSectors)
	for i := range data {
		data[i] = make([]byte, SectorBytes)
	}
	return &memDevice{data: data}
}

func (d *memDevice) ReadSector(ctx context.Context, sector SectorID, dst []byte) error {
	must.Truef(len(dst) == SectorBytes, "block: ReadSector: dst has length %d, want %d", len(dst), SectorBytes)
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(sector) >= len(d.data) {
		return errors.E(errors.Invalid, "memdevice: sector out of range")
	}
	copy(dst, d.data[sector])
	return nil
}

func (d *memDevice) WriteSector(ctx context.Context, sector SectorID, src []byte) error {
	must.Truef(len(src) == SectorBytes, "block: WriteSector: src has length %d, want %d", len(src), SectorBytes)
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(sector) >= len(d.data) {
		return errors.E(errors.Invalid, "memdevice: sector out of range")
	}
	copy(d.data[sector], src)
	return nil
}

func (d *memDevice) NumSectors() SectorID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return SectorID(len(d.data))
}
