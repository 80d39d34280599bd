// Package must provides a handful of functions to express fatal
// assertions. The file system layer's error handling design treats
// violated preconditions (a read past the end of a sector, a nil inode
// handle, a negative length) as programming errors rather than
// recoverable ones: these abort the process rather than
// returning an error value. Package must is the vehicle for that.
package must

import (
	"fmt"

	"github.com/yuhengfdada/pintofs/log"
)

// Func is the function called to report an error and interrupt
// execution. Func is typically set to log.Panic or log.Fatal. It should
// be set before any potential calls to functions in the must package.
var Func func(...interface{}) = log.Panic

// Nil asserts that v is nil; v is typically a value of type error. If v
// is not nil, Nil formats a message in the manner of fmt.Sprint and
// calls must.Func, suffixed with the fmt.Sprint-formatted value of v.
func Nil(v interface{}, args ...interface{}) {
	if v == nil {
		return
	}
	if len(args) == 0 {
		Func(v)
		return
	}
	Func(fmt.Sprint(args...), ": ", v)
}

// Nilf is Nil with a fmt.Sprintf-style message.
func Nilf(v interface{}, format string, args ...interface{}) {
	if v == nil {
		return
	}
	Func(fmt.Sprintf(format, args...), ": ", v)
}

// True is a no-op if b is true. If it is false, True formats a message
// in the manner of fmt.Sprint and calls Func.
func True(b bool, v ...interface{}) {
	if b {
		return
	}
	if len(v) == 0 {
		Func("must: assertion failed")
		return
	}
	Func(v...)
}

// Truef is True with a fmt.Sprintf-style message.
func Truef(b bool, format string, v ...interface{}) {
	if b {
		return
	}
	Func(fmt.Sprintf(format, v...))
}

// Never asserts that it is never called.
func Never(v ...interface{}) {
	Func(v...)
}

// Neverf is Never with a fmt.Sprintf-style message.
func Neverf(format string, v ...interface{}) {
	Func(fmt.Sprintf(format, v...))
}
