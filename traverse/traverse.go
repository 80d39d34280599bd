// Package traverse provides facilities for concurrent and parallel slice
// traversal. It is used by the cache and inode test suites to fan out
// many concurrent operations against a single shared cache or inode
// handle.
package traverse

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/yuhengfdada/pintofs/errorreporter"
)

type panicErr struct {
	v     interface{}
	stack []byte
}

func (p panicErr) Error() string { return fmt.Sprint(p.v) }

// Traverse is a traversal of a given length. Traverse instances should be
// instantiated with Each and Parallel.
type Traverse struct {
	n, maxConcurrent int
}

// Each creates a new traversal of length n appropriate for concurrent
// traversal: one goroutine per index.
func Each(n int) Traverse {
	return Traverse{n, n}
}

// Parallel creates a new traversal of length n appropriate for parallel
// traversal, limited to the number of available CPUs.
func Parallel(n int) Traverse {
	return Each(n).Limit(runtime.NumCPU())
}

// Limit limits the concurrency of the traversal to maxConcurrent.
func (t Traverse) Limit(maxConcurrent int) Traverse {
	t.maxConcurrent = maxConcurrent
	return t
}

// Do performs a traversal, invoking op for each index 0 <= i < t.n. Do
// returns the first error returned by any invoked op, or nil when all
// ops succeed. Panics in op are recovered and propagated to the calling
// goroutine, printing the original stack trace. Do guarantees that,
// after it returns, no more ops will be invoked.
func (t Traverse) Do(op func(i int) error) error {
	if t.n == 0 {
		return nil
	}
	maxConcurrent := t.maxConcurrent
	if maxConcurrent > t.n {
		maxConcurrent = t.n
	}

	var reporter errorreporter.T
	apply := func(i int) (err error) {
		defer func() {
			if perr := recover(); perr != nil {
				err = panicErr{perr, debug.Stack()}
			}
		}()
		return op(i)
	}

	var wg sync.WaitGroup
	wg.Add(maxConcurrent)
	var x int64 = -1
	for i := 0; i < maxConcurrent; i++ {
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&x, 1))
				if i >= t.n || reporter.Err() != nil {
					return
				}
				if err := apply(i); err != nil {
					reporter.Set(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if err := reporter.Err(); err != nil {
		if perr, ok := err.(panicErr); ok {
			panic(fmt.Sprintf("traverse child: %s\n%s", perr.v, string(perr.stack)))
		}
		return err
	}
	return nil
}
