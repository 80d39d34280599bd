// Package ctxsync provides context-aware synchronization primitives.
// Most of the file system layer's internal waits are deliberately
// indefinite (the cache's per-slot wait_ready and some_slot_ready
// conditions, the inode layer's not_extending condition) because the
// underlying block device is assumed to always make eventual progress;
// those use the standard sync.Mutex/sync.Cond directly. ctxsync.Mutex is
// for the boundary glue layer, where an administrative operation (mount
// shutdown) may reasonably be given a deadline by its caller.
package ctxsync

import (
	"context"
	"sync"

	"github.com/yuhengfdada/pintofs/errors"
)

// Mutex is a context-aware mutex. It must not be copied. The zero value
// is ready to use.
type Mutex struct {
	initOnce sync.Once
	lockCh   chan struct{}
}

// Lock attempts to exclusively lock m. If m is already locked, it waits
// until it is unlocked. If ctx is canceled before the lock can be
// taken, Lock returns ctx.Err() wrapped with errors.Canceled, and the
// lock is not held.
func (m *Mutex) Lock(ctx context.Context) error {
	m.init()
	select {
	case m.lockCh <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.E(errors.Canceled, "waiting for lock", ctx.Err())
	}
}

// Unlock unlocks m. It must be called exactly once for every Lock call
// that returned nil. Unlock panics if m is not locked.
func (m *Mutex) Unlock() {
	m.init()
	select {
	case <-m.lockCh:
	default:
		panic("ctxsync: Unlock called on mutex that is not locked")
	}
}

func (m *Mutex) init() {
	m.initOnce.Do(func() {
		m.lockCh = make(chan struct{}, 1)
	})
}
