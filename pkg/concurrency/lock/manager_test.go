package lock

import (
	"errors"
	"testing"

	"cursordb/pkg/dberror"
)

func TestSharedReadsAndConflicts(t *testing.T) {
	m := NewManager()
	row := Resource{Table: "users", Row: 64}

	if _, err := m.Acquire("c1", row, Read); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acquire("c2", row, Read); err != nil {
		t.Fatalf("second reader: %v", err)
	}
	if _, err := m.Acquire("c2", row, Write); !errors.Is(err, dberror.ErrLockConflict) {
		t.Fatalf("write over foreign read: err = %v", err)
	}
	if got := m.Held("c2", row); got != Read {
		t.Errorf("failed escalation changed the lock to %v", got)
	}

	m.Release("c1", row)
	prev, err := m.Acquire("c2", row, Write)
	if err != nil {
		t.Fatalf("escalation after release: %v", err)
	}
	if prev != Read {
		t.Errorf("prev = %v, want READ", prev)
	}
}

func TestEscalationIsNoOpWhenWeaker(t *testing.T) {
	m := NewManager()
	row := Resource{Table: "t", Row: 1}
	_, _ = m.Acquire("c1", row, Write)

	prev, err := m.Acquire("c1", row, Read)
	if err != nil || prev != Write {
		t.Errorf("Acquire(Read) over Write = %v, %v", prev, err)
	}
	if m.Held("c1", row) != Write {
		t.Error("lock was downgraded")
	}
}

func TestTableLockExcludesRows(t *testing.T) {
	m := NewManager()
	_, _ = m.Acquire("c1", Resource{Table: "t", Row: 8}, Read)

	if _, err := m.Acquire("c2", TableResource("t"), Table); !errors.Is(err, dberror.ErrLockConflict) {
		t.Errorf("table lock over foreign row lock: err = %v", err)
	}
	if _, err := m.Acquire("c1", TableResource("t"), Table); err != nil {
		t.Errorf("own table lock: %v", err)
	}
	if _, err := m.Acquire("c2", Resource{Table: "t", Row: 9}, Insert); !errors.Is(err, dberror.ErrLockConflict) {
		t.Errorf("row lock under foreign table lock: err = %v", err)
	}
	if _, err := m.Acquire("c2", Resource{Table: "other", Row: 9}, Write); err != nil {
		t.Errorf("unrelated table: %v", err)
	}
}

func TestRestoreAndReleaseAll(t *testing.T) {
	m := NewManager()
	row := Resource{Table: "t", Row: 1}
	_, _ = m.Acquire("c1", row, Read)
	_, _ = m.Acquire("c1", row, Write)

	m.Restore("c1", row, Read)
	if m.Held("c1", row) != Read {
		t.Errorf("restore to READ: got %v", m.Held("c1", row))
	}
	if _, err := m.Acquire("c2", row, Read); err != nil {
		t.Errorf("reader after restore: %v", err)
	}

	m.Restore("c1", row, None)
	if m.Count("c1") != 0 {
		t.Errorf("c1 still holds %d locks", m.Count("c1"))
	}

	_, _ = m.Acquire("c2", Resource{Table: "t", Row: 2}, Write)
	m.ReleaseAll("c2")
	if m.Count("c2") != 0 {
		t.Errorf("c2 still holds %d locks", m.Count("c2"))
	}
	if _, err := m.Acquire("c3", TableResource("t"), Table); err != nil {
		t.Errorf("table lock after everything was released: %v", err)
	}
}
