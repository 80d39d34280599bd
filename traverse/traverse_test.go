package traverse

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func recovered(f func()) (v interface{}) {
	defer func() { v = recover() }()
	f()
	return v
}

func TestTraverse(t *testing.T) {
	list := make([]int, 5)
	err := Each(5).Do(func(i int) error {
		list[i] += i
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := list, []int{0, 1, 2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	expectedErr := errors.New("test error")
	err = Each(5).Do(func(i int) error {
		if i == 3 {
			return expectedErr
		}
		return nil
	})
	if got, want := err, expectedErr; got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestTraverseLimit(t *testing.T) {
	const n = 20
	list := make([]int, n)
	err := Each(n).Limit(3).Do(func(i int) error {
		list[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range list {
		if v != i*i {
			t.Errorf("index %d: got %d, want %d", i, v, i*i)
		}
	}
}

func TestPanic(t *testing.T) {
	expectedPanic := "panic in traverse"
	f := func() {
		Each(5).Do(func(i int) error {
			if i == 3 {
				panic(expectedPanic)
			}
			return nil
		})
	}
	v := recovered(f)
	s, ok := v.(string)
	if !ok {
		t.Fatal("expected string")
	}
	if got, want := s, fmt.Sprintf("traverse child: %s", expectedPanic); !strings.HasPrefix(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEmptyTraversal(t *testing.T) {
	called := false
	err := Each(0).Do(func(i int) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("op should never be called for a zero-length traversal")
	}
}
