package codec

import "encoding/binary"

// Uint64 is the Codec for fixed-size uint64 elements, used where a
// compile-time fixed serialized size is required to derive a static
// chunk capacity K.
type Uint64 struct{}

// Size is the fixed encoded length of a Uint64-coded value.
const Size = 8

func (Uint64) Encode(v uint64) ([]byte, []uint64, error) {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint64(buf, v)
	return buf, nil, nil
}

// Size reports the fixed encoded length, satisfying codec.FixedCodec.
func (Uint64) Size() int { return Size }

func (Uint64) Decode(payload []byte, refs []uint64) (uint64, error) {
	if len(payload) != Size {
		return 0, ErrSize(Size, len(payload))
	}
	if len(refs) != 0 {
		return 0, ErrRefCount(0, len(refs))
	}
	return binary.LittleEndian.Uint64(payload), nil
}
