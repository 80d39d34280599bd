package config_test

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yuhengfdada/pintofs/config"
)

func TestAddFlagsDefaults(t *testing.T) {
	var c config.Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.AddFlags(fs)
	require.NoError(t, fs.Parse(nil))
	require.Equal(t, config.Default(), c)
	require.NoError(t, c.Validate())
}

func TestAddFlagsOverride(t *testing.T) {
	var c config.Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"-device.path=/tmp/x.img", "-cache.slots=4", "-format"}))
	require.Equal(t, "/tmp/x.img", c.DevicePath)
	require.Equal(t, 4, c.CacheSlots)
	require.True(t, c.Format)
}

func TestValidateRejectsEmptyPath(t *testing.T) {
	c := config.Default()
	c.DevicePath = ""
	require.Error(t, c.Validate())
}

func TestValidateRejectsNonPositive(t *testing.T) {
	c := config.Default()
	c.CacheSlots = 0
	require.Error(t, c.Validate())
}
