package deque

import (
	"encoding/binary"
	"fmt"

	"github.com/hchenqi/blockstore/internal/block"
	"github.com/hchenqi/blockstore/internal/codec"
)

// node is the persisted shape of one deque chunk: up to k elements packed
// inline alongside the doubly linked chunk pointers. Elements embed no
// block references of their own: the chunked layout is scoped to
// fixed-size scalar element types, since a variable number of embedded
// refs per slot would be wasteful to pack for small T.
type node[T any] struct {
	next, prev block.Ref
	data       []T
}

// sentinel is the persisted shape of a deque's root block, mirroring
// list's sentinel so the root is never itself a data-bearing chunk.
type sentinel struct {
	next, prev block.Ref
}

// computeK derives the per-node element capacity from the hard block
// payload limit: K = floor((limit
// - 2*sizeof(index) - sizeof(length)) / elemSize).
func computeK(elemSize int) int {
	overhead := 2*8 + 8
	if elemSize <= 0 {
		return 0
	}
	k := (block.PayloadLimit - overhead) / elemSize
	if k < 0 {
		k = 0
	}
	return k
}

type nodeCodec[T any] struct {
	elem     codec.FixedCodec[T]
	elemSize int
}

func (c nodeCodec[T]) Encode(v node[T]) ([]byte, []uint64, error) {
	buf := make([]byte, 24+c.elemSize*len(v.data))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(v.next))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(v.prev))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(v.data)))
	for i, e := range v.data {
		payload, refs, err := c.elem.Encode(e)
		if err != nil {
			return nil, nil, err
		}
		if len(refs) != 0 {
			return nil, nil, fmt.Errorf("deque: element type embeds %d block refs, chunked nodes require refless elements", len(refs))
		}
		if len(payload) != c.elemSize {
			return nil, nil, codec.ErrSize(c.elemSize, len(payload))
		}
		copy(buf[24+i*c.elemSize:24+(i+1)*c.elemSize], payload)
	}
	return buf, []uint64{uint64(v.next), uint64(v.prev)}, nil
}

func (c nodeCodec[T]) Decode(payload []byte, refs []uint64) (node[T], error) {
	if len(payload) < 24 {
		return node[T]{}, codec.ErrSize(24, len(payload))
	}
	if len(refs) != 2 {
		return node[T]{}, codec.ErrRefCount(2, len(refs))
	}
	count := binary.LittleEndian.Uint64(payload[16:24])
	want := 24 + c.elemSize*int(count)
	if len(payload) != want {
		return node[T]{}, codec.ErrSize(want, len(payload))
	}
	data := make([]T, count)
	for i := range data {
		start := 24 + i*c.elemSize
		v, err := c.elem.Decode(payload[start:start+c.elemSize], nil)
		if err != nil {
			return node[T]{}, err
		}
		data[i] = v
	}
	return node[T]{
		next: block.Ref(binary.LittleEndian.Uint64(payload[0:8])),
		prev: block.Ref(binary.LittleEndian.Uint64(payload[8:16])),
		data: data,
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
