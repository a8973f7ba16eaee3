package forwardlist

import (
	"encoding/binary"

	"github.com/hchenqi/blockstore/internal/block"
	"github.com/hchenqi/blockstore/internal/codec"
)

// node is the persisted shape of one non-sentinel element: a single
// forward link plus the element value.
type node[T any] struct {
	next  block.Ref
	value T
}

// sentinel is the persisted shape of a forward-list's root block: an
// empty list has sentinel.next == sentinel.
type sentinel struct {
	next block.Ref
}

type nodeCodec[T any] struct{ elem codec.Codec[T] }

func (c nodeCodec[T]) Encode(v node[T]) ([]byte, []uint64, error) {
	payload, refs, err := c.elem.Encode(v.value)
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(v.next))
	copy(buf[8:], payload)

	allRefs := make([]uint64, 0, 1+len(refs))
	allRefs = append(allRefs, uint64(v.next))
	allRefs = append(allRefs, refs...)
	return buf, allRefs, nil
}

func (c nodeCodec[T]) Decode(payload []byte, refs []uint64) (node[T], error) {
	if len(payload) < 8 {
		return node[T]{}, codec.ErrSize(8, len(payload))
	}
	if len(refs) < 1 {
		return node[T]{}, codec.ErrRefCount(1, len(refs))
	}
	value, err := c.elem.Decode(payload[8:], refs[1:])
	if err != nil {
		return node[T]{}, err
	}
	return node[T]{
		next:  block.Ref(binary.LittleEndian.Uint64(payload[0:8])),
		value: value,
	}, nil
}

type sentinelCodec struct{}

func (sentinelCodec) Encode(v sentinel) ([]byte, []uint64, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(v.next))
	return buf, []uint64{uint64(v.next)}, nil
}

func (sentinelCodec) Decode(payload []byte, refs []uint64) (sentinel, error) {
	if len(payload) != 8 {
		return sentinel{}, codec.ErrSize(8, len(payload))
	}
	if len(refs) != 1 {
		return sentinel{}, codec.ErrRefCount(1, len(refs))
	}
	return sentinel{next: block.Ref(binary.LittleEndian.Uint64(payload[0:8]))}, nil
}
