// Package codec is the minimal concrete serialization contract an
// external layout library is expected to satisfy: turning a typed value
// into a (payload, refs) pair and back. Treat this concern as someone
// else's library (an ORM, a protobuf schema); this store's persisted
// shapes are few and fixed, so each gets a small hand-written codec
// instead of a general reflection-based mapper.
package codec

import "fmt"

// Ref is a block reference as it appears embedded in a persisted value:
// an index into the store, serialized as 8 bytes and contributing one
// entry to the owning block's ref list.
type Ref = uint64

// Codec turns a value of type T into the (payload, refs) pair a block
// persists, and back. Implementations must enumerate every embedded Ref
// in the same order on Encode and Decode.
type Codec[T any] interface {
	Encode(v T) (payload []byte, refs []uint64, err error)
	Decode(payload []byte, refs []uint64) (T, error)
}

// FixedCodec is a Codec whose encoded payload has a size known without
// inspecting the value. The chunked deque needs this to derive its
// per-node element capacity K at construction time.
type FixedCodec[T any] interface {
	Codec[T]
	Size() int
}

// ErrSize is returned by a Decode when the payload length does not match
// what the codec expects for its fixed-size shape.
func ErrSize(want, got int) error {
	return fmt.Errorf("codec: payload size mismatch: want %d, got %d", want, got)
}

// ErrRefCount is returned by a Decode when the ref list length does not
// match what the codec expects.
func ErrRefCount(want, got int) error {
	return fmt.Errorf("codec: ref count mismatch: want %d, got %d", want, got)
}
