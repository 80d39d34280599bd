// Package errorreporter is used to accumulate errors from multiple
// threads.
package errorreporter

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// T accumulates errors across multiple threads. Thread safe.
//
// Example:
//
//	e := errorreporter.T{}
//	e.Set(errors.New("test error 0"))
type T struct {
	// Ignored is a list of errors that will be dropped in Set. Ignored
	// typically includes io.EOF.
	Ignored []error
	mu      sync.Mutex
	err     unsafe.Pointer // stores *error
}

// Err returns the first non-nil error passed to Set. Calling Err is
// cheap.
func (e *T) Err() error {
	p := atomic.LoadPointer(&e.err)
	if p == nil {
		return nil
	}
	return *(*error)(p)
}

// Set sets an error. If called multiple times, only the first error is
// remembered.
func (e *T) Set(err error) {
	if err == nil {
		return
	}
	for _, ignored := range e.Ignored {
		if err == ignored {
			return
		}
	}
	e.mu.Lock()
	if e.err == nil {
		atomic.StorePointer(&e.err, unsafe.Pointer(&err))
	}
	e.mu.Unlock()
}
