package cache

import "testing"

func strWrite(v any) ([]byte, []uint64, error) { return []byte(v.(string)), nil, nil }

func TestGetMaterializesOnce(t *testing.T) {
	c := New()
	calls := 0
	load := func() (any, WriteFunc, error) {
		calls++
		return "a", strWrite, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.Get(1, load)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != "a" {
			t.Fatalf("Get = %v, want a", v)
		}
	}
	if calls != 1 {
		t.Fatalf("load called %d times, want 1", calls)
	}
}

func TestAfterRollbackRestoresSnapshot(t *testing.T) {
	c := New()
	if _, err := c.Get(1, func() (any, WriteFunc, error) { return "a", strWrite, nil }); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := c.Update(1, "b"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	c.AfterRollback()
	v, ok := c.Peek(1)
	if !ok || v != "a" {
		t.Fatalf("Peek after rollback = (%v, %v), want (a, true)", v, ok)
	}
	if c.DirtyCount() != 0 {
		t.Fatalf("DirtyCount after rollback = %d, want 0", c.DirtyCount())
	}
}

func TestAfterRollbackDropsFreshEntry(t *testing.T) {
	c := New()
	c.Put(5, "fresh", strWrite)
	c.AfterRollback()
	if _, ok := c.Peek(5); ok {
		t.Fatalf("Peek after rollback of fresh entry: found value, want gone")
	}
}

func TestAfterCommitClearsDirtyAndSnapshots(t *testing.T) {
	c := New()
	c.Put(1, "a", strWrite)
	if err := c.Update(1, "b"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	c.AfterCommit()
	if c.DirtyCount() != 0 {
		t.Fatalf("DirtyCount after commit = %d, want 0", c.DirtyCount())
	}
	v, ok := c.Peek(1)
	if !ok || v != "b" {
		t.Fatalf("Peek after commit = (%v, %v), want (b, true)", v, ok)
	}
}

func TestAfterBeginRejectsDirtyLeftovers(t *testing.T) {
	c := New()
	c.Put(1, "a", strWrite)
	if err := c.AfterBegin(); err == nil {
		t.Fatalf("AfterBegin with dirty entries present: got nil error")
	}
}

func TestClearFailsWithActiveHandles(t *testing.T) {
	c := New()
	c.acquire()
	if err := c.Clear(); err != ErrActiveHandles {
		t.Fatalf("Clear with active handle = %v, want ErrActiveHandles", err)
	}
	c.release()
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear with no active handles: %v", err)
	}
}

func TestBeforeCommitSerializesDirtyEntries(t *testing.T) {
	c := New()
	c.Put(1, "a", strWrite)
	c.Put(2, "b", strWrite)
	written := map[uint64]string{}
	err := c.BeforeCommit(func(idx uint64, payload []byte, refs []uint64) error {
		written[idx] = string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("BeforeCommit: %v", err)
	}
	if written[1] != "a" || written[2] != "b" {
		t.Fatalf("BeforeCommit wrote %+v, want {1:a 2:b}", written)
	}
}
