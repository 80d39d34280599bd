package block_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuhengfdada/pintofs/block"
)

func testDevice(t *testing.T, dev block.Device) {
	ctx := context.Background()
	require.EqualValues(t, 4, dev.NumSectors())

	buf := make([]byte, block.SectorBytes)
	require.NoError(t, dev.ReadSector(ctx, 0, buf))
	for _, b := range buf {
		require.Zero(t, b)
	}

	want := make([]byte, block.SectorBytes)
	for i := range want {
		want[i] = byte(i)
	}
	require.NoError(t, dev.WriteSector(ctx, 2, want))

	got := make([]byte, block.SectorBytes)
	require.NoError(t, dev.ReadSector(ctx, 2, got))
	require.Equal(t, want, got)

	// Sectors other than the one written are untouched.
	other := make([]byte, block.SectorBytes)
	require.NoError(t, dev.ReadSector(ctx, 1, other))
	for _, b := range other {
		require.Zero(t, b)
	}
}

func TestMemDevice(t *testing.T) {
	testDevice(t, block.NewMemDevice(4))
}

func TestFileDevice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")
	dev, err := block.NewFileDevice(path, 4)
	require.NoError(t, err)
	testDevice(t, dev)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 4*block.SectorBytes, fi.Size())
}

func TestFileDeviceReopenPreservesContents(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")

	dev1, err := block.NewFileDevice(path, 4)
	require.NoError(t, err)
	want := make([]byte, block.SectorBytes)
	for i := range want {
		want[i] = 0x42
	}
	require.NoError(t, dev1.WriteSector(ctx, 3, want))

	dev2, err := block.NewFileDevice(path, 4)
	require.NoError(t, err)
	got := make([]byte, block.SectorBytes)
	require.NoError(t, dev2.ReadSector(ctx, 3, got))
	require.Equal(t, want, got)
}
