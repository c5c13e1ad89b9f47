package transaction

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/primitives"
	"cursordb/pkg/storage"
)

type mockUnit struct {
	name     string
	log      *[]string
	failWith error
}

func (m *mockUnit) Commit() error {
	if m.failWith != nil {
		return m.failWith
	}
	*m.log = append(*m.log, "commit "+m.name)
	return nil
}

func (m *mockUnit) Undo() error {
	*m.log = append(*m.log, "undo "+m.name)
	return nil
}

func (m *mockUnit) Rollback() error {
	*m.log = append(*m.log, "rollback "+m.name)
	return nil
}

func newTestContext(owner string, locks *lock.Manager) *Context {
	return NewContext(owner, locks, &sync.Mutex{})
}

func equalLog(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCommitWritesOnlyLatestVersion(t *testing.T) {
	var log []string
	c := newTestContext("c1", lock.NewManager())
	row := RowKey{Table: "t", Row: 64}

	for _, name := range []string{"v1", "v2", "v3"} {
		if err := c.Add(&Entry{Unit: &mockUnit{name: name, log: &log}, Row: &row}); err != nil {
			t.Fatal(err)
		}
	}
	_ = c.Add(&Entry{Unit: &mockUnit{name: "other", log: &log}})

	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	want := []string{"rollback v1", "rollback v2", "commit v3", "commit other"}
	if !equalLog(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
	if c.Pending() != 0 {
		t.Errorf("pending = %d after commit", c.Pending())
	}
}

func TestCommitFailureUndoesEverything(t *testing.T) {
	var log []string
	locks := lock.NewManager()
	c := newTestContext("c1", locks)
	res := lock.Resource{Table: "t", Row: 1}

	_ = c.Add(&Entry{Unit: &mockUnit{name: "a", log: &log}, Lock: res, LockLevel: lock.Write})
	_ = c.Add(&Entry{Unit: &mockUnit{name: "b", log: &log}})
	boom := errors.New("disk full")
	_ = c.Add(&Entry{Unit: &mockUnit{name: "c", log: &log, failWith: boom}})

	if err := c.Commit(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	want := []string{"commit a", "commit b", "undo b", "undo a", "rollback c", "rollback b", "rollback a"}
	if !equalLog(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
	if locks.Count("c1") != 0 {
		t.Error("locks not released after failed commit")
	}
}

func TestValidateVetoesBeforeWriting(t *testing.T) {
	var log []string
	c := newTestContext("c1", lock.NewManager())
	veto := errors.New("duplicate")
	discarded := false

	_ = c.Add(&Entry{Unit: &mockUnit{name: "a", log: &log}, Validate: func() error { return veto }, Discard: func() { discarded = true }})
	if err := c.Commit(); !errors.Is(err, veto) {
		t.Fatalf("err = %v", err)
	}
	if !equalLog(log, []string{"rollback a"}) {
		t.Errorf("log = %v", log)
	}
	if !discarded {
		t.Error("Discard hook not run")
	}
}

func TestFinishFailureRevertsEarlierFinishes(t *testing.T) {
	var log []string
	c := newTestContext("c1", lock.NewManager())
	reverted := false
	_ = c.Add(&Entry{
		Unit:   &mockUnit{name: "a", log: &log},
		Finish: func() error { return nil },
		Revert: func() { reverted = true },
	})
	_ = c.Add(&Entry{Finish: func() error { return errors.New("index io") }})

	if err := c.Commit(); err == nil {
		t.Fatal("expected error")
	}
	if !reverted {
		t.Error("earlier Finish not reverted")
	}
	if !equalLog(log, []string{"commit a", "undo a", "rollback a"}) {
		t.Errorf("log = %v", log)
	}
}

func TestRollbackToSavepointReleasesLocks(t *testing.T) {
	var log []string
	locks := lock.NewManager()
	c := newTestContext("c1", locks)
	row := RowKey{Table: "t", Row: 8}
	res := lock.Resource{Table: "t", Row: 8}

	_ = c.Add(&Entry{Unit: &mockUnit{name: "read", log: &log}, Row: &row, Lock: res, LockLevel: lock.Read})
	sp := c.Savepoint()
	_ = c.Add(&Entry{Unit: &mockUnit{name: "w1", log: &log}, Row: &row, Lock: res, LockLevel: lock.Write})
	_ = c.Add(&Entry{Unit: &mockUnit{name: "w2", log: &log}, Lock: lock.Resource{Table: "t", Row: 9}, LockLevel: lock.Write})

	if err := c.RollbackTo(sp); err != nil {
		t.Fatal(err)
	}
	if !equalLog(log, []string{"rollback w2", "rollback w1"}) {
		t.Errorf("log = %v", log)
	}
	if got := locks.Held("c1", res); got != lock.Read {
		t.Errorf("lock on row 8 = %v, want READ", got)
	}
	if got := locks.Held("c1", lock.Resource{Table: "t", Row: 9}); got != lock.None {
		t.Errorf("lock on row 9 = %v, want NONE", got)
	}
	if u := c.Latest(row); u == nil || u.(*mockUnit).name != "read" {
		t.Errorf("latest version = %v", u)
	}
	if err := c.RollbackTo(5); err == nil {
		t.Error("savepoint beyond the pending list accepted")
	}
}

func TestConflictAddsNothing(t *testing.T) {
	locks := lock.NewManager()
	c1 := newTestContext("c1", locks)
	c2 := newTestContext("c2", locks)
	res := lock.Resource{Table: "t", Row: 1}

	if err := c1.Lock(res, lock.Write); err != nil {
		t.Fatal(err)
	}
	if err := c2.Lock(res, lock.Read); err == nil {
		t.Fatal("expected conflict")
	}
	if c2.Pending() != 0 {
		t.Error("conflicting entry was added")
	}
	_ = c1.Rollback()
	if err := c2.Lock(res, lock.Read); err != nil {
		t.Errorf("after c1 rolled back: %v", err)
	}
}

func TestRollbackDeletesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.tbl")
	f, err := storage.CreateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestContext("c1", lock.NewManager())
	_ = c.Add(&Entry{Unit: storage.NewNewFileUnit(f)})
	_ = c.Add(&Entry{Unit: storage.NewPage(f, primitives.UnassignedOffset, []byte("row"))})

	if err := c.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("new file survived rollback: %v", err)
	}
}

func TestCommitSyncsAndRunsAfterCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.tbl")
	f, err := storage.CreateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	c := newTestContext("c1", lock.NewManager())
	ran := false
	_ = c.Add(&Entry{Unit: storage.NewPage(f, primitives.UnassignedOffset, []byte("abc"))})
	c.AfterCommit(func() error { ran = true; return nil })

	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !ran {
		t.Error("AfterCommit callback not run")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "abc" {
		t.Errorf("file = %q", data)
	}
	if s := c.Stats(); s.Commits != 1 || s.UnitsWritten != 1 {
		t.Errorf("stats = %+v", s)
	}
}
