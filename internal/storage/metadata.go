package storage

import (
	"encoding/binary"
	"fmt"
)

// SchemaVersion is the on-disk schema version this build writes and
// expects to find in an existing file's Metadata record. A mismatch on
// open is fatal (ErrUnsupportedSchema).
const SchemaVersion uint64 = 2025_09_27_0

// Phase is the GC state machine's current phase, persisted in Metadata.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseSweeping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseSweeping:
		return "sweeping"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Metadata is the single persisted record describing the store's schema
// version, root block, and GC state. It is stored as a fixed 64-byte blob
// in the STATIC table's single row.
type Metadata struct {
	SchemaVersion    uint64
	Root             uint64
	Mark             bool
	Phase            Phase
	BlockCountPrev   uint64
	BlockCount       uint64
	BlockCountMarked uint64
	MaxIndex         uint64
	SweepIndex       uint64
}

// metadataSize is the fixed encoded length of Metadata: schema(8) +
// root(8) + mark(1) + phase(1) + pad(6) + 5*uint64(40) = 64.
const metadataSize = 64

func encodeMetadata(m Metadata) []byte {
	buf := make([]byte, metadataSize)
	binary.LittleEndian.PutUint64(buf[0:8], m.SchemaVersion)
	binary.LittleEndian.PutUint64(buf[8:16], m.Root)
	if m.Mark {
		buf[16] = 1
	}
	buf[17] = byte(m.Phase)
	// buf[18:24] left as padding
	binary.LittleEndian.PutUint64(buf[24:32], m.BlockCountPrev)
	binary.LittleEndian.PutUint64(buf[32:40], m.BlockCount)
	binary.LittleEndian.PutUint64(buf[40:48], m.BlockCountMarked)
	binary.LittleEndian.PutUint64(buf[48:56], m.MaxIndex)
	binary.LittleEndian.PutUint64(buf[56:64], m.SweepIndex)
	return buf
}

func decodeMetadata(buf []byte) (Metadata, error) {
	if len(buf) != metadataSize {
		return Metadata{}, fmt.Errorf("storage: metadata record has %d bytes, want %d", len(buf), metadataSize)
	}
	return Metadata{
		SchemaVersion:    binary.LittleEndian.Uint64(buf[0:8]),
		Root:             binary.LittleEndian.Uint64(buf[8:16]),
		Mark:             buf[16] != 0,
		Phase:            Phase(buf[17]),
		BlockCountPrev:   binary.LittleEndian.Uint64(buf[24:32]),
		BlockCount:       binary.LittleEndian.Uint64(buf[32:40]),
		BlockCountMarked: binary.LittleEndian.Uint64(buf[40:48]),
		MaxIndex:         binary.LittleEndian.Uint64(buf[48:56]),
		SweepIndex:       binary.LittleEndian.Uint64(buf[56:64]),
	}, nil
}

// encodeRefs renders a ref list as an ordered array of 8-byte
// little-endian uint64s, count implicit from length.
func encodeRefs(refs []uint64) []byte {
	buf := make([]byte, 8*len(refs))
	for i, r := range refs {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], r)
	}
	return buf
}

func decodeRefs(buf []byte) ([]uint64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("storage: ref blob length %d not a multiple of 8", len(buf))
	}
	refs := make([]uint64, len(buf)/8)
	for i := range refs {
		refs[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}
	return refs, nil
}
