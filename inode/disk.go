package inode

import (
	"encoding/binary"

	"github.com/yuhengfdada/pintofs/block"
	"github.com/yuhengfdada/pintofs/errors"
)

var bin = binary.LittleEndian

const (
	// magic is the constant tag written into every on-disk inode for
	// integrity checking.
	magic uint32 = 0x494E4F44

	// nDirect is the number of direct sector pointers an inode carries.
	nDirect = 123
	// pointersPerBlock is the number of sector-id entries an indirect
	// block holds; it fills exactly one sector (512 / 4).
	pointersPerBlock = block.SectorBytes / 4

	offLength   = 0
	offIsDir    = 4
	offDirect   = 8
	offSingle   = offDirect + 4*nDirect // 500
	offDouble   = offSingle + 4         // 504
	offMagic    = offDouble + 4         // 508
	diskRecSize = offMagic + 4          // 512
)

// maxFileSize is the largest length a single inode can index: nDirect
// direct blocks, pointersPerBlock single-indirect blocks, and
// pointersPerBlock*pointersPerBlock double-indirect blocks.
const maxFileSize = int64(nDirect+pointersPerBlock+pointersPerBlock*pointersPerBlock) * block.SectorBytes

// disk is the exactly-SECTOR_BYTES on-disk inode record, laid out
// little-endian per the external interface: length, is_dir, 123 direct
// pointers, a single-indirect pointer, a double-indirect pointer, and a
// trailing magic tag.
type disk struct {
	length         int64 // stored as int32 on disk
	isDir          bool
	direct         [nDirect]block.SectorID
	singleIndirect block.SectorID
	doubleIndirect block.SectorID
}

func init() {
	// diskRecSize must match SECTOR_BYTES exactly for encode/decode to
	// round-trip through a single sector.
	if diskRecSize != block.SectorBytes {
		panic("inode: on-disk record size does not match SECTOR_BYTES")
	}
}

// encode serializes d into buf, which must have length SECTOR_BYTES.
func (d *disk) encode(buf []byte) {
	bin.PutUint32(buf[offLength:], uint32(int32(d.length)))
	isDirWord := uint32(0)
	if d.isDir {
		isDirWord = 1
	}
	bin.PutUint32(buf[offIsDir:], isDirWord)
	for i, s := range d.direct {
		bin.PutUint32(buf[offDirect+4*i:], uint32(s))
	}
	bin.PutUint32(buf[offSingle:], uint32(d.singleIndirect))
	bin.PutUint32(buf[offDouble:], uint32(d.doubleIndirect))
	bin.PutUint32(buf[offMagic:], magic)
}

// decode deserializes buf (length SECTOR_BYTES) into a new disk record,
// failing with errors.Integrity if the magic tag does not match.
func decode(buf []byte) (*disk, error) {
	if bin.Uint32(buf[offMagic:]) != magic {
		return nil, errors.E(errors.Integrity, "inode: bad magic tag")
	}
	d := &disk{
		length: int64(int32(bin.Uint32(buf[offLength:]))),
		isDir:  bin.Uint32(buf[offIsDir:]) != 0,
	}
	for i := range d.direct {
		d.direct[i] = block.SectorID(bin.Uint32(buf[offDirect+4*i:]))
	}
	d.singleIndirect = block.SectorID(bin.Uint32(buf[offSingle:]))
	d.doubleIndirect = block.SectorID(bin.Uint32(buf[offDouble:]))
	return d, nil
}

// encodeIndirect serializes an indirect block's pointersPerBlock entries
// into buf (length SECTOR_BYTES).
func encodeIndirect(ptrs []block.SectorID, buf []byte) {
	for i := 0; i < pointersPerBlock; i++ {
		var v block.SectorID
		if i < len(ptrs) {
			v = ptrs[i]
		}
		bin.PutUint32(buf[4*i:], uint32(v))
	}
}

// decodeIndirect deserializes an indirect block's pointersPerBlock
// entries from buf (length SECTOR_BYTES).
func decodeIndirect(buf []byte) [pointersPerBlock]block.SectorID {
	var ptrs [pointersPerBlock]block.SectorID
	for i := range ptrs {
		ptrs[i] = block.SectorID(bin.Uint32(buf[4*i:]))
	}
	return ptrs
}
