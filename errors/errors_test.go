package errors_test

import (
	"context"
	"testing"

	"github.com/yuhengfdada/pintofs/errors"
)

func TestErrorMessage(t *testing.T) {
	err := errors.E(errors.ResourcesExhausted, "allocating 3 sectors")
	want := "allocating 3 sectors: resources exhausted"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestErrorChaining(t *testing.T) {
	cause := errors.E(errors.Integrity, "bad magic")
	err := errors.E(errors.Precondition, "opening inode", cause)
	want := "opening inode: precondition failed: bad magic: integrity error"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIs(t *testing.T) {
	err := errors.E(errors.ResourcesExhausted, "no free sectors")
	if !errors.Is(errors.ResourcesExhausted, err) {
		t.Errorf("expected %v to be ResourcesExhausted", err)
	}
	if errors.Is(errors.Integrity, err) {
		t.Errorf("did not expect %v to be Integrity", err)
	}
}

func TestCanceledInference(t *testing.T) {
	err := errors.E("waiting for flush", context.Canceled)
	if !errors.Is(errors.Canceled, err) {
		t.Errorf("expected %v to be inferred as Canceled", err)
	}
}

func TestMatch(t *testing.T) {
	e1 := errors.E(errors.NotExist, "a")
	e2 := errors.E(errors.NotExist, "b")
	e3 := errors.E(errors.Invalid, "c")
	if !errors.Match(e1, e2) {
		t.Errorf("expected e1 and e2 to match")
	}
	if errors.Match(e1, e3) {
		t.Errorf("did not expect e1 and e3 to match")
	}
}
