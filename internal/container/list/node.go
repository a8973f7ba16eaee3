package list

import (
	"encoding/binary"

	"github.com/hchenqi/blockstore/internal/block"
	"github.com/hchenqi/blockstore/internal/codec"
)

// node is the persisted shape of one non-sentinel element: a doubly
// linked link pair plus the element value.
type node[T any] struct {
	next, prev block.Ref
	value      T
}

// sentinel is the persisted shape of a list's root block: its own index
// terminates both chains.
type sentinel struct {
	next, prev block.Ref
}

type nodeCodec[T any] struct{ elem codec.Codec[T] }

func (c nodeCodec[T]) Encode(v node[T]) ([]byte, []uint64, error) {
	payload, refs, err := c.elem.Encode(v.value)
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, 16+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(v.next))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(v.prev))
	copy(buf[16:], payload)

	allRefs := make([]uint64, 0, 2+len(refs))
	allRefs = append(allRefs, uint64(v.next), uint64(v.prev))
	allRefs = append(allRefs, refs...)
	return buf, allRefs, nil
}

func (c nodeCodec[T]) Decode(payload []byte, refs []uint64) (node[T], error) {
	if len(payload) < 16 {
		return node[T]{}, codec.ErrSize(16, len(payload))
	}
	if len(refs) < 2 {
		return node[T]{}, codec.ErrRefCount(2, len(refs))
	}
	value, err := c.elem.Decode(payload[16:], refs[2:])
	if err != nil {
		return node[T]{}, err
	}
	return node[T]{
		next:  block.Ref(binary.LittleEndian.Uint64(payload[0:8])),
		prev:  block.Ref(binary.LittleEndian.Uint64(payload[8:16])),
		value: value,
	}, nil
}

type sentinelCodec struct{}

func (sentinelCodec) Encode(v sentinel) ([]byte, []uint64, error) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(v.next))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(v.prev))
	return buf, []uint64{uint64(v.next), uint64(v.prev)}, nil
}

func (sentinelCodec) Decode(payload []byte, refs []uint64) (sentinel, error) {
	if len(payload) != 16 {
		return sentinel{}, codec.ErrSize(16, len(payload))
	}
	if len(refs) != 2 {
		return sentinel{}, codec.ErrRefCount(2, len(refs))
	}
	return sentinel{
		next: block.Ref(binary.LittleEndian.Uint64(payload[0:8])),
		prev: block.Ref(binary.LittleEndian.Uint64(payload[8:16])),
	}, nil
}
