package cmd_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuhengfdada/pintofs/cmd/pintofs/cmd"
)

func withStdin(t *testing.T, content string, fn func()) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = old }()
	go func() {
		_, _ = io.WriteString(w, content)
		w.Close()
	}()
	fn()
}

func TestFormatSubcommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")
	err := cmd.Run(context.Background(), []string{"format", "-device.path=" + path, "-device.sectors=256"})
	require.NoError(t, err)
}

func TestWriteThenReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")
	require.NoError(t, cmd.Run(context.Background(), []string{"format", "-device.path=" + path, "-device.sectors=256"}))

	var sectorOut bytes.Buffer
	withStdin(t, "hello from the command line\n", func() {
		require.NoError(t, cmd.WriteFile(context.Background(), &sectorOut, []string{"-device.path=" + path}))
	})
	sector := strings.TrimSpace(sectorOut.String())
	require.NotEmpty(t, sector)

	var readOut bytes.Buffer
	require.NoError(t, cmd.ReadFile(context.Background(), &readOut, []string{"-device.path=" + path, "-sector=" + sector}))
	require.Equal(t, "hello from the command line\n", readOut.String())
}

func TestUnknownCommand(t *testing.T) {
	err := cmd.Run(context.Background(), []string{"bogus"})
	require.Error(t, err)
}

func TestNoCommand(t *testing.T) {
	err := cmd.Run(context.Background(), nil)
	require.Error(t, err)
}
