// Package cmd implements the pintofs command-line subcommands: mounting
// a device, running the instrumentation counters, and a handful of
// direct file operations useful for exercising the file system from a
// shell.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/yuhengfdada/pintofs/block"
	"github.com/yuhengfdada/pintofs/config"
	"github.com/yuhengfdada/pintofs/errors"
	"github.com/yuhengfdada/pintofs/fs"
)

var commands = []struct {
	name     string
	callback func(ctx context.Context, out io.Writer, args []string) error
	help     string
}{
	{"format", Format, "Format a new device file and create its root directory."},
	{"hit-count", HitCount, "Mount the device, print the cache's hit counter, and exit."},
	{"access-count", AccessCount, "Mount the device, print the cache's access counter, and exit."},
	{"reset", Reset, "Mount the device, reset the cache's counters, flush, and exit."},
	{"write-file", WriteFile, "Allocate an inode sector, create a file there holding stdin, and print the sector."},
	{"read-file", ReadFile, "Read a file at the given inode sector to stdout."},
}

// PrintHelp prints the list of available subcommands to stderr.
func PrintHelp() {
	fmt.Fprintln(os.Stderr, "Subcommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "%s: %s\n", c.name, c.help)
	}
}

// Run dispatches args[0] to the matching subcommand, passing it args[1:].
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		PrintHelp()
		return errors.E(errors.Invalid, "no subcommand given")
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.callback(ctx, os.Stdout, args[1:])
		}
	}
	PrintHelp()
	return errors.E(errors.Invalid, "unknown command", args[0])
}

// mount parses the shared device/cache flags from args and opens (or
// formats) the file system they describe.
func mount(fset *flag.FlagSet, args []string, format bool) (*fs.FS, func() error, error) {
	var c config.Config
	c.AddFlags(fset)
	if err := fset.Parse(args); err != nil {
		return nil, nil, err
	}
	if format {
		c.Format = true
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	nSectors := c.NumSectors
	if fi, err := os.Stat(c.DevicePath); err == nil && fi.Size() >= block.SectorBytes {
		nSectors = int(fi.Size() / block.SectorBytes)
	}
	dev, err := block.NewFileDevice(c.DevicePath, nSectors)
	if err != nil {
		return nil, nil, err
	}
	f, err := fs.Init(context.Background(), dev, c.CacheSlots, c.Format)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error {
		return dev.(interface{ Close() error }).Close()
	}
	return f, closeFn, nil
}

// Format mounts a device with formatting forced on, then shuts it down.
func Format(ctx context.Context, out io.Writer, args []string) error {
	fset := flag.NewFlagSet("format", flag.ContinueOnError)
	f, closeDev, err := mount(fset, args, true)
	if err != nil {
		return err
	}
	if err := f.Shutdown(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "formatted %s, root directory at sector %d\n", fset.Lookup("device.path").Value.String(), f.RootDirectorySector())
	return closeDev()
}

// HitCount mounts the device, prints the cache's hit counter, and exits
// without modifying anything.
func HitCount(ctx context.Context, out io.Writer, args []string) error {
	fset := flag.NewFlagSet("hit-count", flag.ContinueOnError)
	f, closeDev, err := mount(fset, args, false)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, f.Cache.HitCount())
	return closeDev()
}

// AccessCount mounts the device, prints the cache's access counter, and
// exits without modifying anything.
func AccessCount(ctx context.Context, out io.Writer, args []string) error {
	fset := flag.NewFlagSet("access-count", flag.ContinueOnError)
	f, closeDev, err := mount(fset, args, false)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, f.Cache.AccessCount())
	return closeDev()
}

// Reset mounts the device, resets the cache's counters, flushes, and
// exits.
func Reset(ctx context.Context, out io.Writer, args []string) error {
	fset := flag.NewFlagSet("reset", flag.ContinueOnError)
	f, closeDev, err := mount(fset, args, false)
	if err != nil {
		return err
	}
	f.Cache.Reset()
	if err := f.Shutdown(ctx); err != nil {
		return err
	}
	return closeDev()
}

// WriteFile allocates a fresh inode sector, creates a file there sized to
// stdin's contents, writes stdin's contents into it, and prints the
// inode sector to out.
func WriteFile(ctx context.Context, out io.Writer, args []string) error {
	fset := flag.NewFlagSet("write-file", flag.ContinueOnError)
	f, closeDev, err := mount(fset, args, false)
	if err != nil {
		return err
	}
	rest := fset.Args()
	if len(rest) != 0 {
		return errors.E(errors.Invalid, "write-file takes no positional arguments, data is read from stdin")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	sector, err := f.Free.Allocate(1)
	if err != nil {
		return err
	}
	if err := f.Inode.Create(ctx, sector, int64(len(data)), false); err != nil {
		return err
	}
	h := f.Inode.Open(sector)
	f.Inode.WriteAt(ctx, h, data, 0)
	f.Inode.Close(ctx, h)
	if err := f.Shutdown(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d\n", sector)
	return closeDev()
}

// ReadFile writes the file whose inode is at the sector named by the
// -sector flag to out.
func ReadFile(ctx context.Context, out io.Writer, args []string) error {
	fset := flag.NewFlagSet("read-file", flag.ContinueOnError)
	var sectorFlag string
	fset.StringVar(&sectorFlag, "sector", "", "inode sector to read")
	f, closeDev, err := mount(fset, args, false)
	if err != nil {
		return err
	}
	if sectorFlag == "" {
		return errors.E(errors.Invalid, "read-file: -sector is required")
	}
	n, err := strconv.ParseUint(sectorFlag, 10, 32)
	if err != nil {
		return errors.E(errors.Invalid, "read-file: invalid -sector", err)
	}
	sector := block.SectorID(n)
	h := f.Inode.Open(sector)
	length := f.Inode.Length(ctx, h)
	buf := make([]byte, length)
	f.Inode.ReadAt(ctx, h, buf, 0)
	f.Inode.Close(ctx, h)
	if _, err := out.Write(buf); err != nil {
		return err
	}
	return closeDev()
}
