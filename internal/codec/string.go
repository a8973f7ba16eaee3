package codec

// String is the Codec for plain string values. It carries no embedded
// block references.
type String struct{}

func (String) Encode(v string) ([]byte, []uint64, error) {
	return []byte(v), nil, nil
}

func (String) Decode(payload []byte, refs []uint64) (string, error) {
	if len(refs) != 0 {
		return "", ErrRefCount(0, len(refs))
	}
	return string(payload), nil
}
