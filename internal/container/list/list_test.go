package list

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hchenqi/blockstore/internal/block"
	"github.com/hchenqi/blockstore/internal/codec"
	"github.com/hchenqi/blockstore/internal/container"
)

func openTestManager(t *testing.T) *block.Manager {
	t.Helper()
	m := block.New(block.Options{})
	if err := m.Open(context.Background(), ":memory:"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func collect(t *testing.T, l *List[string]) []string {
	t.Helper()
	var got []string
	it, err := l.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for !it.AtEnd() {
		v, err := it.Value()
		if err != nil {
			t.Fatalf("Value: %v", err)
		}
		got = append(got, v)
		it, err = it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	return got
}

func collectReverse(t *testing.T, l *List[string]) []string {
	t.Helper()
	var got []string
	it := l.End()
	for {
		prev, err := it.Prev()
		if err != nil {
			t.Fatalf("Prev: %v", err)
		}
		if prev.AtEnd() {
			break
		}
		v, err := prev.Value()
		if err != nil {
			t.Fatalf("Value: %v", err)
		}
		got = append(got, v)
		it = prev
	}
	return got
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEmptyListHasNoFrontOrBack(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		return err
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if empty, err := l.Empty(); err != nil || !empty {
		t.Fatalf("Empty = (%v, %v), want (true, nil)", empty, err)
	}
	if _, err := l.Front(); !errors.Is(err, container.ErrEmpty) {
		t.Fatalf("Front on empty = %v, want ErrEmpty", err)
	}
	if _, err := l.Back(); !errors.Is(err, container.ErrEmpty) {
		t.Fatalf("Back on empty = %v, want ErrEmpty", err)
	}
}

func TestPushBackOrderPreserved(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		for _, v := range []string{"a", "b", "c"} {
			if err := l.PushBack(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	want := []string{"a", "b", "c"}
	if got := collect(t, l); !equalSlices(got, want) {
		t.Fatalf("forward order = %v, want %v", got, want)
	}
	rev := collectReverse(t, l)
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	if !equalSlices(rev, want) {
		t.Fatalf("reverse order (re-reversed) = %v, want %v", rev, want)
	}
}

func TestPushFrontOrderPreserved(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		for _, v := range []string{"a", "b", "c"} {
			if err := l.PushFront(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	want := []string{"c", "b", "a"}
	if got := collect(t, l); !equalSlices(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestPopFrontAndBack(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		for _, v := range []string{"a", "b", "c", "d"} {
			if err := l.PushBack(v); err != nil {
				return err
			}
		}
		if err := l.PopFront(); err != nil {
			return err
		}
		return l.PopBack()
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	want := []string{"b", "c"}
	if got := collect(t, l); !equalSlices(got, want) {
		t.Fatalf("order after pops = %v, want %v", got, want)
	}
}

func TestPopFromEmptyReturnsErrEmpty(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		return err
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = m.Transaction(func() error { return l.PopFront() })
	if !errors.Is(err, container.ErrEmpty) {
		t.Fatalf("PopFront on empty = %v, want ErrEmpty", err)
	}
	err = m.Transaction(func() error { return l.PopBack() })
	if !errors.Is(err, container.ErrEmpty) {
		t.Fatalf("PopBack on empty = %v, want ErrEmpty", err)
	}
}

func TestInsertBeforeMiddle(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		if err := l.PushBack("a"); err != nil {
			return err
		}
		if err := l.PushBack("c"); err != nil {
			return err
		}
		it, err := l.Begin()
		if err != nil {
			return err
		}
		it, err = it.Next()
		if err != nil {
			return err
		}
		_, err = l.InsertBefore(it, "b")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	want := []string{"a", "b", "c"}
	if got := collect(t, l); !equalSlices(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestEraseMiddle(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	var mid Iterator[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		for _, v := range []string{"a", "b", "c"} {
			if err := l.PushBack(v); err != nil {
				return err
			}
		}
		it, err := l.Begin()
		if err != nil {
			return err
		}
		mid, err = it.Next()
		return err
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	err = m.Transaction(func() error { return l.Erase(mid) })
	if err != nil {
		t.Fatalf("Erase: %v", err)
	}
	want := []string{"a", "c"}
	if got := collect(t, l); !equalSlices(got, want) {
		t.Fatalf("order after erase = %v, want %v", got, want)
	}
}

func TestEraseAtEndReturnsErrOutOfRange(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		return err
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = m.Transaction(func() error { return l.Erase(l.End()) })
	if !errors.Is(err, container.ErrOutOfRange) {
		t.Fatalf("Erase(End()) = %v, want ErrOutOfRange", err)
	}
}

func TestSetReplacesElement(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		return l.PushBack("a")
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	err = m.Transaction(func() error {
		it, err := l.Begin()
		if err != nil {
			return err
		}
		return it.Set("z")
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	want := []string{"z"}
	if got := collect(t, l); !equalSlices(got, want) {
		t.Fatalf("order after Set = %v, want %v", got, want)
	}
}

func TestTransactionAbortLeavesListUnchanged(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		return l.PushBack("a")
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	boom := errors.New("boom")
	err = m.Transaction(func() error {
		if err := l.PushBack("b"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction = %v, want boom", err)
	}

	want := []string{"a"}
	if got := collect(t, l); !equalSlices(got, want) {
		t.Fatalf("order after aborted transaction = %v, want %v", got, want)
	}
}

func TestBootstrapReopenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.db")
	m := block.New(block.Options{})
	if err := m.Open(context.Background(), path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	err := m.Transaction(func() error {
		l, err := Bootstrap(m, codec.String{}, m.Root())
		if err != nil {
			return err
		}
		for _, v := range []string{"x", "y", "z"} {
			if err := l.PushBack(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("build list: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2 := block.New(block.Options{})
	if err := m2.Open(context.Background(), path); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()
	l2, err := Bootstrap(m2, codec.String{}, m2.Root())
	if err != nil {
		t.Fatalf("Bootstrap after reopen: %v", err)
	}
	want := []string{"x", "y", "z"}
	if got := collect(t, l2); !equalSlices(got, want) {
		t.Fatalf("order after reopen = %v, want %v", got, want)
	}
}
