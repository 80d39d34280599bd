// Package log provides simple level logging for the file system layer.
// Log output is implemented by an Outputter, which by default outputs to
// Go's standard "log" package. The buffer cache logs at Debug on slot
// fetch and writeback, and at Error immediately before a device-fatal
// condition is handed to package must.
//
// If the application wishes to configure logging levels by a standard
// flag, it should call log.AddFlags before flag.Parse.
package log

import (
	"fmt"
	"os"
)

// An Outputter provides a destination for leveled log output.
type Outputter interface {
	// Level returns the level at which the outputter is accepting
	// messages.
	Level() Level
	// Output writes the provided message to the outputter at the
	// provided calldepth and level. The message is dropped if the
	// outputter is not logging at the desired level.
	Output(calldepth int, level Level, s string) error
}

var out Outputter = gologOutputter{}

// SetOutputter installs a new outputter for use by the log package.
// SetOutputter should not be called concurrently with any log output,
// and is thus suitable to be called only upon program initialization.
// SetOutputter returns the old outputter.
func SetOutputter(newOut Outputter) Outputter {
	old := out
	out = newOut
	return old
}

// GetOutputter returns the current outputter used by the log package.
func GetOutputter() Outputter {
	return out
}

// At returns whether the logger is currently logging at the provided
// level.
func At(level Level) bool {
	return level <= out.Level()
}

// Output outputs a log message to the current outputter at the provided
// level and call depth.
func Output(calldepth int, level Level, s string) error {
	return out.Output(calldepth+1, level, s)
}

// A Level is a log verbosity level. Increasing levels decrease in
// priority and increase in verbosity: if the outputter is logging at
// level L, all messages with level M <= L are output.
type Level int

const (
	// Off never outputs messages.
	Off = Level(-3)
	// Error outputs error messages.
	Error = Level(-2)
	// Info outputs informational messages. This is the standard level.
	Info = Level(0)
	// Debug outputs messages intended for debugging and development.
	Debug = Level(1)
)

// String returns the string representation of the level l.
func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "error"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		if l < 0 {
			panic("invalid log level")
		}
		return fmt.Sprintf("debug%d", l)
	}
}

// Print formats a message in the manner of fmt.Sprint and outputs it at
// level l.
func (l Level) Print(v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprint(v...))
	}
}

// Printf formats a message in the manner of fmt.Sprintf and outputs it
// at level l.
func (l Level) Printf(format string, v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprintf(format, v...))
	}
}

// Print formats a message in the manner of fmt.Sprint and outputs it at
// Info.
func Print(v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprint(v...))
	}
}

// Printf formats a message in the manner of fmt.Sprintf and outputs it
// at Info.
func Printf(format string, v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprintf(format, v...))
	}
}

// Fatal formats a message in the manner of fmt.Sprint, outputs it at
// Error and then calls os.Exit(1).
func Fatal(v ...interface{}) {
	_ = out.Output(2, Error, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf is Fatal with a fmt.Sprintf-style message.
func Fatalf(format string, v ...interface{}) {
	_ = out.Output(2, Error, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Panic formats a message in the manner of fmt.Sprint, outputs it at
// Error and then panics. This is the default must.Func: a violated
// precondition in the cache or inode layer aborts the process this way.
func Panic(v ...interface{}) {
	s := fmt.Sprint(v...)
	_ = out.Output(2, Error, s)
	panic(s)
}

// Panicf is Panic with a fmt.Sprintf-style message.
func Panicf(format string, v ...interface{}) {
	s := fmt.Sprintf(format, v...)
	_ = out.Output(2, Error, s)
	panic(s)
}
