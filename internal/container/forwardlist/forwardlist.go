// Package forwardlist is a persistent singly linked list: a circular
// ring through the sentinel, so before_begin, begin, end, emplace_front,
// emplace_after and erase_after all reduce to a single next-link rewrite.
package forwardlist

import (
	"github.com/hchenqi/blockstore/internal/block"
	"github.com/hchenqi/blockstore/internal/codec"
	"github.com/hchenqi/blockstore/internal/container"
)

// List is a singly linked list rooted at a sentinel block.
type List[T any] struct {
	m    *block.Manager
	elem codec.Codec[T]
	node nodeCodec[T]
	root block.Ref
}

// New allocates a fresh empty forward list.
func New[T any](m *block.Manager, elem codec.Codec[T]) (*List[T], error) {
	idx, err := m.AllocateIndex()
	if err != nil {
		return nil, err
	}
	block.Install(m, sentinelCodec{}, idx, sentinel{next: idx})
	return &List[T]{m: m, elem: elem, node: nodeCodec[T]{elem}, root: idx}, nil
}

// Open wraps an existing sentinel block as a forward list.
func Open[T any](m *block.Manager, elem codec.Codec[T], root block.Ref) *List[T] {
	return &List[T]{m: m, elem: elem, node: nodeCodec[T]{elem}, root: root}
}

// Root returns the list's sentinel reference.
func (l *List[T]) Root() block.Ref { return l.root }

func (l *List[T]) readNext(ref block.Ref) (block.Ref, error) {
	if ref == l.root {
		s, err := block.Get(l.m, sentinelCodec{}, l.root)
		return s.next, err
	}
	n, err := block.Get(l.m, l.node, ref)
	return n.next, err
}

func (l *List[T]) setNext(ref, next block.Ref) error {
	if ref == l.root {
		return block.Set(l.m, l.root, sentinel{next: next})
	}
	n, err := block.Get(l.m, l.node, ref)
	if err != nil {
		return err
	}
	n.next = next
	return block.Set(l.m, ref, n)
}

// Empty reports whether the list holds no elements.
func (l *List[T]) Empty() (bool, error) {
	next, err := l.readNext(l.root)
	if err != nil {
		return false, err
	}
	return next == l.root, nil
}

// BeforeBegin returns the iterator positioned before the first element,
// the only valid position to pass to InsertAfter/EraseAfter for
// front-of-list operations.
func (l *List[T]) BeforeBegin() Iterator[T] { return Iterator[T]{l: l, cur: l.root} }

// Begin returns an iterator to the first element, or to End if empty.
func (l *List[T]) Begin() (Iterator[T], error) {
	next, err := l.readNext(l.root)
	return Iterator[T]{l: l, cur: next}, err
}

// End returns the past-the-end iterator (the sentinel itself).
func (l *List[T]) End() Iterator[T] { return Iterator[T]{l: l, cur: l.root} }

// Front returns the first element's value.
func (l *List[T]) Front() (T, error) {
	var zero T
	it, err := l.Begin()
	if err != nil {
		return zero, err
	}
	if it.AtEnd() {
		return zero, container.ErrEmpty
	}
	return it.Value()
}

// InsertAfter inserts v immediately after pos and returns an iterator to
// the newly inserted element.
func (l *List[T]) InsertAfter(pos Iterator[T], v T) (Iterator[T], error) {
	oldNext, err := l.readNext(pos.cur)
	if err != nil {
		return Iterator[T]{}, err
	}
	idx, err := l.m.AllocateIndex()
	if err != nil {
		return Iterator[T]{}, err
	}
	block.Install(l.m, l.node, idx, node[T]{next: oldNext, value: v})
	if err := l.setNext(pos.cur, idx); err != nil {
		return Iterator[T]{}, err
	}
	return Iterator[T]{l: l, cur: idx}, nil
}

// EraseAfter removes the element immediately after pos. The vacated
// block is reclaimed by the next GC cycle.
func (l *List[T]) EraseAfter(pos Iterator[T]) error {
	target, err := l.readNext(pos.cur)
	if err != nil {
		return err
	}
	if target == l.root {
		return container.ErrOutOfRange
	}
	afterTarget, err := l.readNext(target)
	if err != nil {
		return err
	}
	return l.setNext(pos.cur, afterTarget)
}

// EmplaceFront inserts v at the front of the list.
func (l *List[T]) EmplaceFront(v T) error {
	_, err := l.InsertAfter(l.BeforeBegin(), v)
	return err
}

// PopFront removes the first element.
func (l *List[T]) PopFront() error {
	begin, err := l.Begin()
	if err != nil {
		return err
	}
	if begin.AtEnd() {
		return container.ErrEmpty
	}
	return l.EraseAfter(l.BeforeBegin())
}

// Iterator is a forward-only cursor into a List.
type Iterator[T any] struct {
	l   *List[T]
	cur block.Ref
}

// AtEnd reports whether it addresses the sentinel (past-the-end).
func (it Iterator[T]) AtEnd() bool { return it.cur == it.l.root }

// Next returns the iterator to the following element.
func (it Iterator[T]) Next() (Iterator[T], error) {
	next, err := it.l.readNext(it.cur)
	return Iterator[T]{l: it.l, cur: next}, err
}

// Value returns the element addressed by it.
func (it Iterator[T]) Value() (T, error) {
	var zero T
	if it.AtEnd() {
		return zero, container.ErrOutOfRange
	}
	n, err := block.Get(it.l.m, it.l.node, it.cur)
	if err != nil {
		return zero, err
	}
	return n.value, nil
}

// Set replaces the element addressed by it.
func (it Iterator[T]) Set(v T) error {
	if it.AtEnd() {
		return container.ErrOutOfRange
	}
	n, err := block.Get(it.l.m, it.l.node, it.cur)
	if err != nil {
		return err
	}
	n.value = v
	return block.Set(it.l.m, it.cur, n)
}
