// Package block defines the sector device seam: the only component
// allowed to perform blocking I/O against the underlying storage medium.
// Only package cache (for inode, index, and data sectors) and package
// freemap's Load and Save (for the free-sector bitmap) read or write a
// Device; other packages use block only for its types, constants, and
// constructors.
package block

import (
	"context"
	"math"
)

// SectorBytes is the fixed size of a sector, in bytes.
const SectorBytes = 512

// SectorID addresses a single sector on a Device.
type SectorID uint32

// NoSector is the sentinel SectorID meaning "no such sector". It is
// returned by the inode layer's byte-to-sector translation for
// positions at or past a file's end, and must never be a value a
// Device actually serves.
const NoSector SectorID = math.MaxUint32

// Device is a byte-addressable sector device, addressed in units of
// SectorBytes. It is the sole blocking I/O surface in this module: all
// calls are synchronous and may block arbitrarily long. There are no
// retries at this layer — any failure returned here is treated by
// package cache as fatal to the calling operation.
type Device interface {
	// ReadSector reads the full contents of sector into dst, which must
	// have length SectorBytes.
	ReadSector(ctx context.Context, sector SectorID, dst []byte) error
	// WriteSector writes the full contents of src to sector, which must
	// have length SectorBytes.
	WriteSector(ctx context.Context, sector SectorID, src []byte) error
	// NumSectors returns the device's total sector count.
	NumSectors() SectorID
}
