package database

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"cursordb/pkg/config"
	"cursordb/pkg/dberror"
	"cursordb/pkg/expr"
	"cursordb/pkg/table"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

// setupTestDB opens a database in a fresh directory with auto-commit on.
func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db, func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
}

func reopen(t *testing.T, db *Database) *Database {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	db, err := Open(db.Config())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	return db
}

func mustExec(t *testing.T, c *Connection, stmt Statement) int {
	t.Helper()
	n, err := c.Exec(stmt)
	if err != nil {
		t.Fatalf("%s: %v", stmt.Kind(), err)
	}
	return n
}

func usersTable() CreateTable {
	return CreateTable{
		Name: "users",
		Columns: []tuple.Column{
			{Name: "id", Type: types.IntType},
			{Name: "name", Type: types.StringType, Nullable: true},
			{Name: "age", Type: types.IntType, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

func user(id int64, name string, age int64) []expr.Expr {
	return []expr.Expr{expr.Int(id), expr.Str(name), expr.Int(age)}
}

// setupUsers creates users with alice(30), bob(25) and carol(35).
func setupUsers(t *testing.T, c *Connection) {
	t.Helper()
	mustExec(t, c, usersTable())
	mustExec(t, c, Insert{Table: "users", Values: [][]expr.Expr{
		user(1, "alice", 30),
		user(2, "bob", 25),
		user(3, "carol", 35),
	}})
}

// queryRows runs src and renders every row as "a,b,...".
func queryRows(t *testing.T, c *Connection, src Source) []string {
	t.Helper()
	rs, err := c.Query(src)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer rs.Close()
	res := NewResultFormatter().FormatRows(rs)
	if !res.Success {
		t.Fatalf("reading rows: %v", res.Error)
	}
	out := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		out[i] = strings.Join(r, ",")
	}
	return out
}

func assertRows(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("rows = %q, want %q", got, want)
	}
}

// ============================================================================
// TESTS
// ============================================================================

func TestOpenCreatesDataDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "db")
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Errorf("data directory not created: %v", err)
	}
	if got := db.GetTables(); len(got) != 0 {
		t.Errorf("GetTables = %v, want none", got)
	}
	if db.Name() != "db" {
		t.Errorf("Name = %q, want db", db.Name())
	}
}

func TestTablesAndIndexesSurviveReopen(t *testing.T) {
	db, _ := setupTestDB(t)
	c := db.Connect()
	setupUsers(t, c)
	mustExec(t, c, CreateIndex{Table: "users", Index: table.IndexDef{Name: "by_name", Columns: []string{"name"}}})

	db = reopen(t, db)
	defer db.Close()

	if got := db.GetTables(); !slices.Equal(got, []string{"users"}) {
		t.Fatalf("GetTables = %v", got)
	}
	tbl, err := db.Table("users")
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if tbl.Len() != 3 {
		t.Errorf("Len = %d, want 3", tbl.Len())
	}
	for _, name := range []string{"users_pkey", "by_name"} {
		if _, ok := tbl.Index(name); !ok {
			t.Errorf("index %s missing after reopen", name)
		}
	}
	if col := tbl.TupleDesc().Columns[0]; col.Nullable {
		t.Error("primary key column should be NOT NULL")
	}

	c = db.Connect()
	_, err = c.Exec(Insert{Table: "users", Values: [][]expr.Expr{user(2, "dup", 1)}})
	if !errors.Is(err, dberror.ErrDuplicateKey) {
		t.Fatalf("duplicate primary key after reopen: err = %v", err)
	}
	var se *StatementError
	if !errors.As(err, &se) || se.Statement != "INSERT" {
		t.Errorf("error should be a StatementError for INSERT, got %T %v", err, err)
	}
}

func TestUncommittedTableHiddenFromOtherConnections(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	creator := db.Connect()
	if err := creator.SetAutoCommit(false); err != nil {
		t.Fatal(err)
	}
	mustExec(t, creator, usersTable())

	other := db.Connect()
	if _, err := other.Query(Select{From: TableRef{Name: "users"}}); !errors.Is(err, dberror.ErrNotFound) {
		t.Fatalf("other connection sees uncommitted table: err = %v", err)
	}
	if _, err := other.Exec(usersTable()); !errors.Is(err, dberror.ErrInvalidArgument) {
		t.Fatalf("creating a reserved name: err = %v", err)
	}
	cat, err := loadCatalog(db.DataDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Tables) != 0 {
		t.Fatalf("catalog lists uncommitted tables: %+v", cat.Tables)
	}

	if err := creator.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	assertRows(t, queryRows(t, other, Select{From: TableRef{Name: "users"}}))

	cat, err = loadCatalog(db.DataDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Tables) != 1 || cat.Tables[0].Name != "users" {
		t.Fatalf("catalog = %+v", cat.Tables)
	}
	if idx := cat.Tables[0].Indexes; len(idx) != 1 || idx[0].Name != "users_pkey" || !idx[0].Unique {
		t.Errorf("catalog indexes = %+v", idx)
	}
}

func TestRollbackOfCreateTableRemovesFiles(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	c := db.Connect()
	if err := c.SetAutoCommit(false); err != nil {
		t.Fatal(err)
	}
	mustExec(t, c, usersTable())
	rowFile := table.RowPath(db.DataDir(), "users")
	pkFile := table.IndexPath(db.DataDir(), "users", "users_pkey")
	for _, p := range []string{rowFile, pkFile} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s not created: %v", p, err)
		}
	}

	if err := c.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	for _, p := range []string{rowFile, pkFile} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still exists after rollback: %v", p, err)
		}
	}
	if got := db.GetTables(); len(got) != 0 {
		t.Errorf("GetTables = %v after rollback", got)
	}

	mustExec(t, c, usersTable())
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestOpenRejectsCorruptCatalog(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, CatalogFile), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.DataDir = dir
	if _, err := Open(cfg); !errors.Is(err, dberror.ErrCorruption) {
		t.Fatalf("Open with corrupt catalog: err = %v", err)
	}
}

func TestStatistics(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	c := db.Connect()
	setupUsers(t, c)
	if _, err := c.Exec(Insert{Table: "missing", Values: [][]expr.Expr{{expr.Int(1)}}}); err == nil {
		t.Fatal("insert into missing table succeeded")
	}

	info := db.GetStatistics()
	if info.TableCount != 1 || info.Tables[0] != "users" {
		t.Errorf("tables = %v", info.Tables)
	}
	if info.QueriesExecuted != 2 {
		t.Errorf("QueriesExecuted = %d, want 2", info.QueriesExecuted)
	}
	if info.TransactionsCount != 2 {
		t.Errorf("TransactionsCount = %d, want 2", info.TransactionsCount)
	}
	if info.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", info.ErrorCount)
	}
}
