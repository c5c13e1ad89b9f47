package database

import (
	"errors"
	"testing"

	"cursordb/pkg/config"
	"cursordb/pkg/dberror"
	"cursordb/pkg/expr"
	"cursordb/pkg/primitives"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

func allUsers() Select {
	return Select{From: TableRef{Name: "users"}, Columns: []expr.Expr{col("", "name")}}
}

func TestManualCommitAndRollback(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	c := db.Connect()
	setupUsers(t, c)
	other := db.Connect()

	if err := c.SetAutoCommit(false); err != nil {
		t.Fatal(err)
	}
	mustExec(t, c, Insert{Table: "users", Values: [][]expr.Expr{user(4, "dave", 40)}})
	assertRows(t, queryRows(t, c, allUsers()), "alice", "bob", "carol", "dave")
	assertRows(t, queryRows(t, other, allUsers()), "alice", "bob", "carol")

	if err := c.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	assertRows(t, queryRows(t, c, allUsers()), "alice", "bob", "carol")

	mustExec(t, c, Insert{Table: "users", Values: [][]expr.Expr{user(5, "eve", 22)}})
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	assertRows(t, queryRows(t, other, allUsers()), "alice", "bob", "carol", "eve")
}

func TestFailedStatementRollsBackOnlyItself(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	c := db.Connect()
	setupUsers(t, c)
	if err := c.SetAutoCommit(false); err != nil {
		t.Fatal(err)
	}

	mustExec(t, c, Insert{Table: "users", Values: [][]expr.Expr{user(4, "dave", 40)}})
	_, err := c.Exec(Insert{Table: "users", Values: [][]expr.Expr{user(5, "eve", 22), user(1, "dup", 1)}})
	if !errors.Is(err, dberror.ErrDuplicateKey) {
		t.Fatalf("err = %v, want DUPLICATE_KEY", err)
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	assertRows(t, queryRows(t, db.Connect(), allUsers()), "alice", "bob", "carol", "dave")
}

func TestSetAutoCommitCommitsPendingWork(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	c := db.Connect()
	setupUsers(t, c)
	if err := c.SetAutoCommit(false); err != nil {
		t.Fatal(err)
	}
	mustExec(t, c, Delete{Table: "users", Where: expr.Equal(col("", "id"), expr.Int(2))})
	if err := c.SetAutoCommit(true); err != nil {
		t.Fatalf("SetAutoCommit: %v", err)
	}
	assertRows(t, queryRows(t, db.Connect(), allUsers()), "alice", "carol")
}

func TestUpdateAndDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	c := db.Connect()
	setupUsers(t, c)

	n := mustExec(t, c, Update{
		Table: "users",
		Set:   []Assignment{{Column: "age", Value: expr.Arithmetic(expr.Add, col("", "age"), expr.Int(1))}},
		Where: expr.Compare(primitives.LessThan, col("", "age"), expr.Int(31)),
	})
	if n != 2 {
		t.Errorf("UPDATE changed %d rows, want 2", n)
	}
	n = mustExec(t, c, Delete{Table: "users", Where: expr.Equal(col("", "name"), expr.Str("bob"))})
	if n != 1 {
		t.Errorf("DELETE removed %d rows, want 1", n)
	}

	got := queryRows(t, c, Select{From: TableRef{Name: "users"}, Columns: []expr.Expr{col("", "name"), col("", "age")}})
	assertRows(t, got, "alice,31", "carol,35")

	if _, err := c.Exec(Update{Table: "users", Set: []Assignment{{Column: "id", Value: expr.Lit(nil)}}}); !errors.Is(err, dberror.ErrInvalidArgument) {
		t.Fatalf("setting a NOT NULL column to NULL: err = %v", err)
	}
}

func TestInsertFromQuery(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	c := db.Connect()
	setupUsers(t, c)
	mustExec(t, c, CreateTable{Name: "archive", Columns: []tuple.Column{
		{Name: "name", Type: types.StringType, Nullable: true},
		{Name: "note", Type: types.StringType, Nullable: true},
	}})

	n := mustExec(t, c, Insert{
		Table:   "archive",
		Columns: []string{"name"},
		Query: Select{
			From:    TableRef{Name: "users"},
			Columns: []expr.Expr{col("", "name")},
			Where:   expr.Compare(primitives.GreaterThanOrEqual, col("", "age"), expr.Int(30)),
		},
	})
	if n != 2 {
		t.Errorf("inserted %d rows, want 2", n)
	}
	assertRows(t, queryRows(t, c, Select{From: TableRef{Name: "archive"}}), "alice,NULL", "carol,NULL")

	_, err := c.Exec(Insert{Table: "archive", Columns: []string{"name", "name"}, Values: [][]expr.Expr{{expr.Str("x"), expr.Str("y")}}})
	if !errors.Is(err, dberror.ErrInvalidArgument) {
		t.Fatalf("repeated column: err = %v", err)
	}
}

func TestWriteConflictBetweenConnections(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	c1 := db.Connect()
	setupUsers(t, c1)
	c2 := db.Connect()

	if err := c1.SetAutoCommit(false); err != nil {
		t.Fatal(err)
	}
	setAge := func(age int64) Update {
		return Update{
			Table: "users",
			Set:   []Assignment{{Column: "age", Value: expr.Int(age)}},
			Where: expr.Equal(col("", "id"), expr.Int(1)),
		}
	}
	mustExec(t, c1, setAge(50))

	if _, err := c2.Exec(setAge(60)); !errors.Is(err, dberror.ErrLockConflict) {
		t.Fatalf("concurrent update: err = %v, want LOCK_CONFLICT", err)
	}
	if err := c1.Commit(); err != nil {
		t.Fatal(err)
	}
	mustExec(t, c2, setAge(60))

	got := queryRows(t, c1, Select{From: TableRef{Name: "users"}, Columns: []expr.Expr{col("", "age")}, Where: expr.Equal(col("", "id"), expr.Int(1))})
	assertRows(t, got, "60")
}

func TestRepeatableReadHoldsReadLocks(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	setupUsers(t, db.Connect())

	reader := db.Connect()
	if err := reader.SetAutoCommit(false); err != nil {
		t.Fatal(err)
	}
	if err := reader.SetIsolation(config.RepeatableRead); err != nil {
		t.Fatal(err)
	}
	assertRows(t, queryRows(t, reader, allUsers()), "alice", "bob", "carol")

	writer := db.Connect()
	del := Delete{Table: "users", Where: expr.Equal(col("", "id"), expr.Int(3))}
	if _, err := writer.Exec(del); !errors.Is(err, dberror.ErrLockConflict) {
		t.Fatalf("delete of a row read under REPEATABLE_READ: err = %v", err)
	}
	if err := reader.Commit(); err != nil {
		t.Fatal(err)
	}
	mustExec(t, writer, del)
}

func TestClosedConnectionRejectsStatements(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	c := db.Connect()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Exec(usersTable()); !errors.Is(err, dberror.ErrInvalidArgument) {
		t.Fatalf("Exec on closed connection: err = %v", err)
	}
}
