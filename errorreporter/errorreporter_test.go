package errorreporter_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/yuhengfdada/pintofs/errorreporter"
)

func TestFirstErrorWins(t *testing.T) {
	var e errorreporter.T
	e1 := errors.New("first")
	e2 := errors.New("second")
	e.Set(e1)
	e.Set(e2)
	if got := e.Err(); got != e1 {
		t.Errorf("got %v, want %v", got, e1)
	}
}

func TestIgnored(t *testing.T) {
	ignored := errors.New("ignore me")
	e := errorreporter.T{Ignored: []error{ignored}}
	e.Set(ignored)
	if got := e.Err(); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestConcurrentSet(t *testing.T) {
	var e errorreporter.T
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Set(errors.New("concurrent"))
		}()
	}
	wg.Wait()
	if e.Err() == nil {
		t.Error("expected a non-nil error after concurrent Set calls")
	}
}
