package table

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/config"
	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

type testDB struct {
	dir      string
	locks    *lock.Manager
	commitMu sync.Mutex
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()
	return &testDB{dir: t.TempDir(), locks: lock.NewManager()}
}

func (db *testDB) conn(owner string) *transaction.Context {
	return transaction.NewContext(owner, db.locks, &db.commitMu)
}

func peopleDesc(t *testing.T) *tuple.TupleDescription {
	t.Helper()
	td, err := tuple.NewTupleDesc([]tuple.Column{
		{Name: "id", Type: types.IntType},
		{Name: "name", Type: types.StringType, Nullable: true},
	})
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return td
}

func person(id int64, name string) []types.Field {
	return []types.Field{types.NewIntField(id), types.NewStringField(name)}
}

// createPeople creates the table and commits the given rows.
func createPeople(t *testing.T, db *testDB, names ...string) *Table {
	t.Helper()
	ctx := db.conn("setup")
	tbl, err := Create(ctx, db.dir, "people", peopleDesc(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i, name := range names {
		if _, err := tbl.Insert(ctx, person(int64(i+1), name)); err != nil {
			t.Fatalf("Insert %s: %v", name, err)
		}
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return tbl
}

// names reads column 1 of every row of src, front to back.
func names(t *testing.T, src iterator.RowSource) []string {
	t.Helper()
	if err := src.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var out []string
	err := iterator.ForEach(src, func() (bool, error) {
		f, err := src.Field(1)
		if err != nil {
			return false, err
		}
		if f == nil {
			out = append(out, "NULL")
		} else {
			out = append(out, f.String())
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestCommittedRowsSurviveReopen(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "ann", "bob", "cy")
	if tbl.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tbl.Len())
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(db.dir, "people", peopleDesc(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	got := names(t, NewCursor(reopened, db.conn("reader"), config.ReadCommitted))
	if strings.Join(got, ",") != "ann,bob,cy" {
		t.Errorf("rows = %v", got)
	}
}

func TestRollbackDiscardsTableAndRows(t *testing.T) {
	db := newTestDB(t)
	ctx := db.conn("c1")
	tbl, err := Create(ctx, db.dir, "people", peopleDesc(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Insert(ctx, person(1, "ann")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := ctx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if _, err := os.Stat(RowPath(db.dir, "people")); !os.IsNotExist(err) {
		t.Errorf("row file still exists after rollback: %v", err)
	}
}

func TestPendingRowsVisibleOnlyToTheirConnection(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "ann")
	defer tbl.Close()

	writer := db.conn("writer")
	cur := NewCursor(tbl, writer, config.ReadCommitted)
	if err := cur.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := cur.InsertRow(person(2, "bob")); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	if cur.Row() != 0 || !cur.IsBeforeFirst() {
		t.Errorf("InsertRow moved the cursor")
	}
	if ok, err := cur.Last(); err != nil || !ok {
		t.Fatalf("Last = %v, %v", ok, err)
	}
	if !cur.RowInserted() || cur.Row() != 2 {
		t.Errorf("last row: inserted=%v row=%d", cur.RowInserted(), cur.Row())
	}

	if got := names(t, NewCursor(tbl, db.conn("other"), config.ReadCommitted)); len(got) != 1 {
		t.Errorf("other connection sees %v", got)
	}
	if got := names(t, NewCursor(tbl, writer, config.ReadCommitted)); strings.Join(got, ",") != "ann,bob" {
		t.Errorf("writer sees %v", got)
	}
	later := NewCursor(tbl, writer, config.ReadCommitted)
	if err := later.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ok, err := later.Last(); err != nil || !ok {
		t.Fatalf("Last = %v, %v", ok, err)
	}
	if later.RowInserted() {
		t.Error("a pending row of an earlier cursor should not count as inserted")
	}

	if err := writer.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := names(t, NewCursor(tbl, db.conn("other"), config.ReadCommitted)); strings.Join(got, ",") != "ann,bob" {
		t.Errorf("after commit other sees %v", got)
	}
}

func TestInsertAfterLastIsReachedByPrevious(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "ann")
	defer tbl.Close()

	cur := NewCursor(tbl, db.conn("writer"), config.ReadCommitted)
	if err := cur.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := cur.AfterLast(); err != nil {
		t.Fatal(err)
	}
	if _, err := cur.InsertRow(person(2, "bob")); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}
	if ok, err := cur.Previous(); err != nil || !ok {
		t.Fatalf("Previous = %v, %v", ok, err)
	}
	f, err := cur.Field(1)
	if err != nil {
		t.Fatal(err)
	}
	if f.String() != "bob" || cur.Row() != 2 || !cur.RowInserted() {
		t.Errorf("Previous landed on %s at row %d", f, cur.Row())
	}
}

func TestUpdateRelocatesGrowingRow(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "a")
	pos := tbl.Rows()[0]
	long := strings.Repeat("x", 200)

	steps := []struct {
		name  string
		value string
	}{
		{"grow past capacity", long},
		{"shrink into moved record", "b"},
		{"grow again", long + long},
	}
	for _, step := range steps {
		ctx := db.conn("c1")
		if err := tbl.Update(ctx, pos, map[int]types.Field{1: types.NewStringField(step.value)}); err != nil {
			t.Fatalf("%s: Update: %v", step.name, err)
		}
		if err := ctx.Commit(); err != nil {
			t.Fatalf("%s: Commit: %v", step.name, err)
		}
		row, deleted, err := tbl.Read(nil, pos)
		if err != nil || deleted {
			t.Fatalf("%s: Read = %v, %v", step.name, deleted, err)
		}
		if f, _ := row.GetField(1); f.String() != step.value {
			t.Errorf("%s: value has %d bytes, want %d", step.name, len(f.String()), len(step.value))
		}
	}

	if err := tbl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := Open(db.dir, "people", peopleDesc(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	if reopened.Len() != 1 || reopened.Rows()[0] != pos {
		t.Errorf("directory after reopen = %v, want [%d]", reopened.Rows(), pos)
	}
}

func TestDeleteThroughCursor(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "ann", "bob", "cy")
	defer tbl.Close()

	ctx := db.conn("c1")
	cur := NewCursor(tbl, ctx, config.ReadCommitted)
	if err := cur.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ok, err := cur.Absolute(2); err != nil || !ok {
		t.Fatalf("Absolute(2) = %v, %v", ok, err)
	}
	if err := cur.DeleteRow(); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if !cur.RowDeleted() {
		t.Error("RowDeleted = false after DeleteRow")
	}
	if err := cur.DeleteRow(); !errors.Is(err, dberror.ErrInvalidArgument) {
		t.Errorf("second DeleteRow error = %v", err)
	}

	if got := names(t, NewCursor(tbl, ctx, config.ReadCommitted)); strings.Join(got, ",") != "ann,cy" {
		t.Errorf("rows after delete = %v", got)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tbl.Len())
	}
}

func TestInsertThenDeleteWritesNothing(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db)
	defer tbl.Close()
	size := fileSize(t, tbl)

	ctx := db.conn("c1")
	pos, err := tbl.Insert(ctx, person(1, "ghost"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tbl.Delete(ctx, pos); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tbl.Len() != 0 || fileSize(t, tbl) != size {
		t.Errorf("Len = %d, size %d -> %d", tbl.Len(), size, fileSize(t, tbl))
	}
}

func fileSize(t *testing.T, tbl *Table) int64 {
	t.Helper()
	st, err := os.Stat(tbl.Path())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	return st.Size()
}

func TestNotNullColumnRejectsNull(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db)
	defer tbl.Close()

	_, err := tbl.Insert(db.conn("c1"), []types.Field{nil, types.NewStringField("x")})
	if !errors.Is(err, dberror.ErrInvalidArgument) {
		t.Errorf("Insert NULL id error = %v", err)
	}
}

func TestUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "ann", "bob")
	defer tbl.Close()

	ctx := db.conn("ddl")
	ix, err := tbl.CreateIndex(ctx, IndexDef{Name: "people_id", Columns: []string{"id"}, Unique: true})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	rows := tbl.Rows()

	t.Run("duplicate insert", func(t *testing.T) {
		ctx := db.conn("c1")
		defer ctx.Rollback()
		if _, err := tbl.Insert(ctx, person(1, "dup")); !errors.Is(err, dberror.ErrDuplicateKey) {
			t.Errorf("error = %v, want duplicate key", err)
		}
	})

	t.Run("duplicate among pending rows", func(t *testing.T) {
		ctx := db.conn("c1")
		defer ctx.Rollback()
		if _, err := tbl.Insert(ctx, person(7, "x")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if _, err := tbl.Insert(ctx, person(7, "y")); !errors.Is(err, dberror.ErrDuplicateKey) {
			t.Errorf("error = %v, want duplicate key", err)
		}
	})

	t.Run("key freed by a pending delete", func(t *testing.T) {
		ctx := db.conn("c1")
		defer ctx.Rollback()
		if err := tbl.Delete(ctx, rows[0]); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := tbl.Insert(ctx, person(1, "again")); err != nil {
			t.Errorf("Insert after delete: %v", err)
		}
	})

	t.Run("keys swapped within a transaction", func(t *testing.T) {
		ctx := db.conn("c1")
		updates := []struct {
			row int64
			id  int64
		}{{rows[0], 3}, {rows[1], 1}, {rows[0], 2}}
		for _, u := range updates {
			if err := tbl.Update(ctx, u.row, map[int]types.Field{0: types.NewIntField(u.id)}); err != nil {
				t.Fatalf("Update: %v", err)
			}
		}
		if err := ctx.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		for id, want := range map[int64]int64{1: rows[1], 2: rows[0]} {
			got, err := ix.Trie().FindRows([]types.Field{types.NewIntField(id)}, false)
			if err != nil || len(got) != 1 || got[0] != want {
				t.Errorf("FindRows(%d) = %v, %v; want [%d]", id, got, err, want)
			}
		}
		if got, _ := ix.Trie().FindRows([]types.Field{types.NewIntField(3)}, false); got != nil {
			t.Errorf("FindRows(3) = %v, want nil", got)
		}
	})
}

func TestCommitValidatesAgainstOtherConnections(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db)
	defer tbl.Close()

	ddl := db.conn("ddl")
	if _, err := tbl.CreateIndex(ddl, IndexDef{Name: "people_id", Columns: []string{"id"}, Unique: true}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := ddl.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	first, second := db.conn("first"), db.conn("second")
	if _, err := tbl.Insert(first, person(5, "a")); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if _, err := tbl.Insert(second, person(5, "b")); err != nil {
		t.Fatalf("second Insert: %v", err)
	}
	if err := first.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := second.Commit(); !errors.Is(err, dberror.ErrDuplicateKey) {
		t.Errorf("second Commit error = %v, want duplicate key", err)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len = %d, want 1", tbl.Len())
	}
}

func TestIndexRollbackDeletesFile(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "ann")
	defer tbl.Close()

	ctx := db.conn("ddl")
	ix, err := tbl.CreateIndex(ctx, IndexDef{Name: "people_name", Columns: []string{"name"}})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := ctx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if _, ok := tbl.Index("people_name"); ok {
		t.Error("index still attached after rollback")
	}
	if _, err := os.Stat(ix.Path()); !os.IsNotExist(err) {
		t.Errorf("index file still exists: %v", err)
	}
}

func TestWriteLockConflict(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "ann")
	defer tbl.Close()
	pos := tbl.Rows()[0]

	a, b := db.conn("a"), db.conn("b")
	if err := tbl.Update(a, pos, map[int]types.Field{1: types.NewStringField("by a")}); err != nil {
		t.Fatalf("a Update: %v", err)
	}
	if err := tbl.Update(b, pos, map[int]types.Field{1: types.NewStringField("by b")}); !errors.Is(err, dberror.ErrLockConflict) {
		t.Fatalf("b Update error = %v, want lock conflict", err)
	}
	if err := a.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := tbl.Update(b, pos, map[int]types.Field{1: types.NewStringField("by b")}); err != nil {
		t.Errorf("b Update after a rolled back: %v", err)
	}
}

func TestRepeatableReadLocksRowsRead(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "ann")
	defer tbl.Close()

	reader := db.conn("reader")
	if got := names(t, NewCursor(tbl, reader, config.RepeatableRead)); len(got) != 1 {
		t.Fatalf("rows = %v", got)
	}
	writer := db.conn("writer")
	err := tbl.Update(writer, tbl.Rows()[0], map[int]types.Field{1: types.NewStringField("x")})
	if !errors.Is(err, dberror.ErrLockConflict) {
		t.Errorf("Update error = %v, want lock conflict", err)
	}

	if err := reader.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tbl.Update(writer, tbl.Rows()[0], map[int]types.Field{1: types.NewStringField("x")}); err != nil {
		t.Errorf("Update after reader committed: %v", err)
	}
}

func TestCursorNavigation(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "a", "b", "c", "d")
	defer tbl.Close()

	cur := NewCursor(tbl, db.conn("c1"), config.ReadCommitted)
	if err := cur.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	field := func() string {
		f, err := cur.Field(1)
		if err != nil {
			t.Fatalf("Field: %v", err)
		}
		return f.String()
	}

	if ok, _ := cur.Last(); !ok || field() != "d" {
		t.Fatalf("Last")
	}
	if last, _ := cur.IsLast(); !last {
		t.Error("IsLast = false on the last row")
	}
	pos, err := cur.RowPosition()
	if err != nil {
		t.Fatalf("RowPosition: %v", err)
	}
	if ok, _ := cur.Relative(-2); !ok || field() != "b" || cur.Row() != 2 {
		t.Errorf("Relative(-2) row %d", cur.Row())
	}
	if err := cur.SetRowPosition(pos); err != nil || field() != "d" || cur.Row() != 4 {
		t.Errorf("SetRowPosition: %v row %d", err, cur.Row())
	}
	if ok, _ := cur.Next(); ok || !cur.IsAfterLast() {
		t.Error("Next past the end")
	}
	if ok, _ := cur.Previous(); !ok || field() != "d" {
		t.Error("Previous from after-last")
	}
	if ok, _ := cur.Absolute(-4); !ok || field() != "a" || !cur.IsFirst() {
		t.Error("Absolute(-4)")
	}
	if _, err := cur.Field(9); err == nil {
		t.Error("Field(9) succeeded")
	}
	cur.NullRow()
	if f, _ := cur.Field(1); f != nil {
		t.Errorf("Field after NullRow = %v", f)
	}
}

func TestIndexCursorOrder(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "cy", "ann", "bob")
	defer tbl.Close()

	ctx := db.conn("ddl")
	ix, err := tbl.CreateIndex(ctx, IndexDef{Name: "people_name", Columns: []string{"name"}})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cur := NewIndexCursor(tbl, ix, nil, nil)
	if got := names(t, cur); strings.Join(got, ",") != "ann,bob,cy" {
		t.Errorf("forward = %v", got)
	}

	var back []string
	if err := cur.AfterLast(); err != nil {
		t.Fatalf("AfterLast: %v", err)
	}
	for {
		ok, err := cur.Previous()
		if err != nil {
			t.Fatalf("Previous: %v", err)
		}
		if !ok {
			break
		}
		f, _ := cur.Field(1)
		back = append(back, f.String())
	}
	if strings.Join(back, ",") != "cy,bob,ann" {
		t.Errorf("backward = %v", back)
	}

	desc := NewIndexCursor(tbl, ix, nil, []bool{true})
	if got := names(t, desc); strings.Join(got, ",") != "cy,bob,ann" {
		t.Errorf("descending = %v", got)
	}
}

func TestIndexCursorReturnsToRowPosition(t *testing.T) {
	db := newTestDB(t)
	tbl := createPeople(t, db, "cy", "ann", "dee", "bob")
	defer tbl.Close()

	ctx := db.conn("ddl")
	ix, err := tbl.CreateIndex(ctx, IndexDef{Name: "people_name", Columns: []string{"name"}})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := ctx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cur := NewIndexCursor(tbl, ix, nil, nil)
	if err := cur.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ok, err := cur.Absolute(2); err != nil || !ok {
		t.Fatalf("Absolute(2) = %v, %v", ok, err)
	}
	pos, err := cur.RowPosition()
	if err != nil {
		t.Fatal(err)
	}

	nameAt := func() string {
		t.Helper()
		f, err := cur.Field(1)
		if err != nil {
			t.Fatalf("Field: %v", err)
		}
		return f.String()
	}
	check := func(label string) {
		t.Helper()
		if err := cur.SetRowPosition(pos); err != nil {
			t.Fatalf("%s: SetRowPosition: %v", label, err)
		}
		if cur.Row() != 2 || nameAt() != "bob" {
			t.Errorf("%s: row %d name %s, want row 2 bob", label, cur.Row(), nameAt())
		}
		if ok, _ := cur.Next(); !ok || cur.Row() != 3 || nameAt() != "cy" {
			t.Errorf("%s: Next after SetRowPosition: row %d", label, cur.Row())
		}
	}

	cur.Last()
	check("remembered")

	// a change to the index invalidates the saved scroll state
	key := []types.Field{types.NewStringField("zz")}
	if err := ix.Trie().AddValues(999, key); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Trie().RemoveValue(999, key); err != nil {
		t.Fatal(err)
	}
	cur.First()
	check("after index change")
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(RowPath(dir, "broken"), []byte("not a row file"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir, "broken", peopleDesc(t)); !errors.Is(err, dberror.ErrCorruption) {
		t.Errorf("Open error = %v, want corruption", err)
	}
}
