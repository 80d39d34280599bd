package inode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/yuhengfdada/pintofs/block"
	"github.com/yuhengfdada/pintofs/errors"
)

// The on-disk inode record's field offsets are part of the external
// interface: length at 0, is_dir at 4, the 123 direct pointers starting
// at 8, the single-indirect pointer at 500, the double-indirect pointer
// at 504, and the magic tag at 508, filling exactly one 512-byte sector.
func TestDiskFieldOffsets(t *testing.T) {
	require.Equal(t, 0, offLength)
	require.Equal(t, 4, offIsDir)
	require.Equal(t, 8, offDirect)
	require.Equal(t, 500, offSingle)
	require.Equal(t, 504, offDouble)
	require.Equal(t, 508, offMagic)
	require.Equal(t, block.SectorBytes, diskRecSize)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := &disk{
		length:         123456,
		isDir:          true,
		singleIndirect: 7,
		doubleIndirect: 9,
	}
	for i := range d.direct {
		d.direct[i] = block.SectorID(i + 1)
	}

	buf := make([]byte, block.SectorBytes)
	d.encode(buf)

	got, err := decode(buf)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got, cmp.AllowUnexported(disk{})); diff != "" {
		t.Errorf("decode(encode(d)) mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeEmptyFile(t *testing.T) {
	d := &disk{}
	buf := make([]byte, block.SectorBytes)
	d.encode(buf)

	got, err := decode(buf)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got, cmp.AllowUnexported(disk{})); diff != "" {
		t.Errorf("decode(encode(d)) mismatch (-want +got):\n%s", diff)
	}
}

// decode must reject a sector whose magic tag doesn't match, rather than
// silently treating garbage or a foreign sector as an inode record.
func TestDecodeBadMagic(t *testing.T) {
	d := &disk{length: 10}
	buf := make([]byte, block.SectorBytes)
	d.encode(buf)
	buf[offMagic] ^= 0xFF // corrupt one byte of the magic tag

	_, err := decode(buf)
	require.Error(t, err)
	require.True(t, errors.Is(errors.Integrity, err))
}

func TestEncodeIndirectDecodeIndirectRoundTrip(t *testing.T) {
	var ptrs []block.SectorID
	for i := 0; i < pointersPerBlock/2; i++ {
		ptrs = append(ptrs, block.SectorID(i*3+1))
	}

	buf := make([]byte, block.SectorBytes)
	encodeIndirect(ptrs, buf)
	got := decodeIndirect(buf)

	for i := 0; i < pointersPerBlock; i++ {
		if i < len(ptrs) {
			require.Equal(t, ptrs[i], got[i])
		} else {
			require.EqualValues(t, 0, got[i])
		}
	}
}
