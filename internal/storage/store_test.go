package storage

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadMetadataEmpty(t *testing.T) {
	s := openTestStore(t)
	_, exists, err := s.ReadMetadata(context.Background(), s.DB())
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if exists {
		t.Fatalf("ReadMetadata on fresh file: exists = true, want false")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := Metadata{
		SchemaVersion:    SchemaVersion,
		Root:             1,
		Mark:             true,
		Phase:            PhaseScanning,
		BlockCountPrev:   10,
		BlockCount:       12,
		BlockCountMarked: 3,
		MaxIndex:         12,
		SweepIndex:       0,
	}
	if err := s.WriteMetadata(ctx, s.DB(), want); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	got, exists, err := s.ReadMetadata(ctx, s.DB())
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if !exists {
		t.Fatalf("ReadMetadata: exists = false, want true")
	}
	if got != want {
		t.Fatalf("ReadMetadata = %+v, want %+v", got, want)
	}
}

func TestInsertAndReadObject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.InsertEmptyObject(ctx, s.DB(), false)
	if err != nil {
		t.Fatalf("InsertEmptyObject: %v", err)
	}
	payload, refs, err := s.ReadObject(ctx, s.DB(), id)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if len(payload) != 0 || len(refs) != 0 {
		t.Fatalf("fresh object: payload=%v refs=%v, want both empty", payload, refs)
	}
}

func TestWriteObjectReportsPreviousMark(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.InsertEmptyObject(ctx, s.DB(), false)
	if err != nil {
		t.Fatalf("InsertEmptyObject: %v", err)
	}
	prev, err := s.WriteObject(ctx, s.DB(), id, []byte("x"), []uint64{7}, true)
	if err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if prev != false {
		t.Fatalf("WriteObject prevMark = %v, want false", prev)
	}
	prev, err = s.WriteObject(ctx, s.DB(), id, []byte("y"), nil, false)
	if err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if prev != true {
		t.Fatalf("WriteObject second prevMark = %v, want true", prev)
	}
}

func TestMarkReachableSkipsAlreadyMarked(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.InsertEmptyObject(ctx, s.DB(), true)
	if err != nil {
		t.Fatalf("InsertEmptyObject: %v", err)
	}
	matched, _, err := s.MarkReachable(ctx, s.DB(), id, true)
	if err != nil {
		t.Fatalf("MarkReachable: %v", err)
	}
	if matched {
		t.Fatalf("MarkReachable on already-marked row: matched = true, want false")
	}
	matched, _, err = s.MarkReachable(ctx, s.DB(), id, false)
	if err != nil {
		t.Fatalf("MarkReachable: %v", err)
	}
	if !matched {
		t.Fatalf("MarkReachable on differently-marked row: matched = false, want true")
	}
}

func TestDeleteDeadInRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	live, err := s.InsertEmptyObject(ctx, s.DB(), true)
	if err != nil {
		t.Fatalf("InsertEmptyObject: %v", err)
	}
	dead, err := s.InsertEmptyObject(ctx, s.DB(), false)
	if err != nil {
		t.Fatalf("InsertEmptyObject: %v", err)
	}
	n, err := s.DeleteDeadInRange(ctx, s.DB(), 0, dead+1, true)
	if err != nil {
		t.Fatalf("DeleteDeadInRange: %v", err)
	}
	if n != 1 {
		t.Fatalf("DeleteDeadInRange deleted %d rows, want 1", n)
	}
	if _, _, err := s.ReadObject(ctx, s.DB(), live); err != nil {
		t.Fatalf("live object was deleted: %v", err)
	}
	if _, _, err := s.ReadObject(ctx, s.DB(), dead); err == nil {
		t.Fatalf("dead object still exists after sweep")
	}
}

func TestScanQueueLIFO(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.ScanPush(ctx, s.DB(), []uint64{1, 2, 3}); err != nil {
		t.Fatalf("ScanPush: %v", err)
	}
	batch, err := s.ScanPopBatch(ctx, s.DB(), 2)
	if err != nil {
		t.Fatalf("ScanPopBatch: %v", err)
	}
	if len(batch) != 2 || batch[0].ID != 3 || batch[1].ID != 2 {
		t.Fatalf("ScanPopBatch = %+v, want newest-first [3, 2]", batch)
	}
	empty, err := s.ScanEmpty(ctx, s.DB())
	if err != nil {
		t.Fatalf("ScanEmpty: %v", err)
	}
	if empty {
		t.Fatalf("ScanEmpty = true before draining remaining row")
	}
}
