package forwardlist

import (
	"context"
	"errors"
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

func TestEmptyForwardListHasNoFront(t *testing.T) {
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
}

func TestEmplaceFrontOrder(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		for _, v := range []string{"a", "b", "c"} {
			if err := l.EmplaceFront(v); err != nil {
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

func TestInsertAfterMiddle(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		first, err := l.InsertAfter(l.BeforeBegin(), "a")
		if err != nil {
			return err
		}
		if _, err := l.InsertAfter(first, "c"); err != nil {
			return err
		}
		_, err = l.InsertAfter(first, "b")
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

func TestEraseAfterRemovesNext(t *testing.T) {
	m := openTestManager(t)
	var l *List[string]
	err := m.Transaction(func() error {
		var err error
		l, err = New(m, codec.String{})
		if err != nil {
			return err
		}
		for _, v := range []string{"c", "b", "a"} {
			if err := l.EmplaceFront(v); err != nil {
				return err
			}
		}
		return l.EraseAfter(l.BeforeBegin())
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	want := []string{"b", "c"}
	if got := collect(t, l); !equalSlices(got, want) {
		t.Fatalf("order after erase_after(before_begin) = %v, want %v", got, want)
	}
}

func TestEraseAfterEndReturnsErrOutOfRange(t *testing.T) {
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
	err = m.Transaction(func() error { return l.EraseAfter(l.BeforeBegin()) })
	if !errors.Is(err, container.ErrOutOfRange) {
		t.Fatalf("EraseAfter(BeforeBegin()) on empty list = %v, want ErrOutOfRange", err)
	}
}

func TestPopFrontFromEmptyReturnsErrEmpty(t *testing.T) {
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
		return l.EmplaceFront("a")
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
