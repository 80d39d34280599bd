// Package config defines the flag-based configuration surface for
// mounting a file system from the command line: device path, sector
// geometry, and cache sizing.
package config

import (
	"flag"

	"github.com/yuhengfdada/pintofs/errors"
)

// Config holds the settings needed to mount a file system.
type Config struct {
	DevicePath string
	NumSectors int
	CacheSlots int
	Format     bool
}

// Default returns a Config with the package's standard defaults: a
// 64-slot cache and a 8192-sector (4 MiB) device, matching the buffer
// cache's fixed N_SLOTS=64 from the design this layer implements.
func Default() Config {
	return Config{
		DevicePath: "pintofs.img",
		NumSectors: 8192,
		CacheSlots: 64,
	}
}

// AddFlags registers c's fields onto fs with the package's defaults as
// the flag defaults; registering sets every field of c to its default.
func (c *Config) AddFlags(fs *flag.FlagSet) {
	d := Default()
	fs.StringVar(&c.DevicePath, "device.path", d.DevicePath, "path to the backing device file")
	fs.IntVar(&c.NumSectors, "device.sectors", d.NumSectors, "number of sectors on the device (only used when creating a new device file)")
	fs.IntVar(&c.CacheSlots, "cache.slots", d.CacheSlots, "number of buffer cache slots")
	fs.BoolVar(&c.Format, "format", false, "format the device before mounting, discarding any existing contents")
}

// Validate checks that c's fields describe a mountable configuration.
func (c Config) Validate() error {
	if c.DevicePath == "" {
		return errors.E(errors.Invalid, "config: device.path must not be empty")
	}
	if c.NumSectors <= 0 {
		return errors.E(errors.Invalid, "config: device.sectors must be positive")
	}
	if c.CacheSlots <= 0 {
		return errors.E(errors.Invalid, "config: cache.slots must be positive")
	}
	return nil
}
