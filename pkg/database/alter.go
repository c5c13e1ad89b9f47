package database

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/table"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// AlterTable adds a column to a table. Existing rows get NULL in the new
// column, so it must be nullable unless the table is empty.
//
// The change runs in a transaction of its own on a secondary connection:
// the rows are copied into a scratch table with the new layout, its indexes
// are rebuilt, and once that transaction commits the scratch files replace
// the table's files. The caller's transaction is not involved, but its
// pending changes on the table make the statement fail with a lock
// conflict.
type AlterTable struct {
	Table string
	Add   tuple.Column
}

func (AlterTable) Kind() string { return "ALTER TABLE" }

func (s AlterTable) exec(c *Connection) (int, error) {
	db := c.db
	old, err := db.lookupTable(c.ID, s.Table)
	if err != nil {
		return 0, err
	}
	if db.isUncommitted(tableKey(s.Table)) {
		return 0, dberror.InvalidArgument("ALTER TABLE %s: the table is not committed yet", s.Table)
	}
	td := old.TupleDesc()
	if _, err := td.FindColumn("", s.Add.Name); err == nil {
		return 0, dberror.InvalidArgument("column %s already exists in %s", s.Add.Name, s.Table)
	}
	if !s.Add.Nullable && old.Len() > 0 {
		return 0, dberror.InvalidArgument("ALTER TABLE %s: new column %s must be nullable", s.Table, s.Add.Name)
	}

	cols := slices.Clone(td.Columns)
	cols = append(cols, s.Add)
	for i := range cols {
		cols[i].Table = ""
	}
	newTD, err := tuple.NewTupleDesc(cols)
	if err != nil {
		return 0, err
	}

	aux := db.Connect()
	defer func() {
		if err := aux.Close(); err != nil {
			aux.log.Warn("closing ALTER TABLE connection", "error", err)
		}
	}()

	n, err := db.addColumn(aux, old, newTD)
	if err != nil {
		return 0, err
	}
	c.log.Info("table altered", "table", old.Name(), "column", s.Add.Name, "rows", n)
	return n, nil
}

// isUncommitted reports whether key was created by a transaction that has
// not committed yet.
func (db *Database) isUncommitted(key string) bool {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.uncommitted[key] != ""
}

// addColumn copies old into a scratch table laid out as newTD in aux's
// transaction and swaps the files once it commits. On failure the scratch
// files are removed and old stays in place.
func (db *Database) addColumn(aux *Connection, old *table.Table, newTD *tuple.TupleDescription) (int, error) {
	name := old.Name()
	if err := aux.ctx.Lock(lock.TableResource(name), lock.Table); err != nil {
		return 0, err
	}

	scratchName := name + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	scratch, err := table.Create(aux.ctx, db.dataDir, scratchName, newTD)
	if err != nil {
		return 0, db.abandon(aux, err)
	}

	defs := make([]table.IndexDef, 0, len(old.Indexes()))
	for _, ix := range old.Indexes() {
		defs = append(defs, ix.IndexDef)
		if _, err := scratch.CreateIndex(aux.ctx, ix.IndexDef); err != nil {
			return 0, db.abandon(aux, err)
		}
	}

	n, err := copyRows(aux, old, scratch)
	if err != nil {
		return 0, db.abandon(aux, err)
	}

	aux.ctx.AfterCommit(func() error {
		return db.swap(old, scratch, newTD, defs)
	})
	if err := aux.Commit(); err != nil {
		// The commit failure already rolled the scratch files back.
		return 0, fmt.Errorf("ALTER TABLE %s: %w", name, err)
	}
	return n, nil
}

// copyRows inserts every row of src, padded with NULLs, into dst.
func copyRows(aux *Connection, src, dst *table.Table) (int, error) {
	cur := table.NewCursor(src, aux.ctx, aux.isolation)
	if err := cur.Execute(); err != nil {
		return 0, err
	}
	width := dst.TupleDesc().NumFields()
	n := 0
	err := iterator.ForEach(cur, func() (bool, error) {
		vals := make([]types.Field, width)
		for i := range src.TupleDesc().NumFields() {
			v, err := cur.Field(i)
			if err != nil {
				return false, err
			}
			vals[i] = v
		}
		if _, err := dst.Insert(aux.ctx, vals); err != nil {
			return false, err
		}
		n++
		return true, nil
	})
	return n, err
}

// abandon rolls aux back, logging secondary failures, and returns cause.
func (db *Database) abandon(aux *Connection, cause error) error {
	if err := aux.Rollback(); err != nil {
		aux.log.Warn("cleaning up after failed ALTER TABLE", "error", err)
	}
	return cause
}

// swap replaces the files of old with those of scratch and reopens the
// table under its own name. It runs while the table lock of the altering
// transaction is still held.
func (db *Database) swap(old, scratch *table.Table, newTD *tuple.TupleDescription, defs []table.IndexDef) error {
	name := old.Name()
	key := tableKey(name)

	db.mutex.Lock()
	var errs []error
	if err := old.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := scratch.Close(); err != nil {
		errs = append(errs, err)
	}

	renames := [][2]string{{table.RowPath(db.dataDir, scratch.Name()), table.RowPath(db.dataDir, name)}}
	for _, def := range defs {
		renames = append(renames, [2]string{
			table.IndexPath(db.dataDir, scratch.Name(), def.Name),
			table.IndexPath(db.dataDir, name, def.Name),
		})
	}
	for _, r := range renames {
		if err := os.Rename(r[0], r[1]); err != nil {
			errs = append(errs, dberror.IOFailure("AlterTable", err))
			break
		}
	}

	t, err := table.Open(db.dataDir, name, newTD)
	if err == nil {
		for _, def := range defs {
			if ixErr := t.OpenIndex(def); ixErr != nil {
				errs = append(errs, ixErr)
			}
		}
		db.tables[key] = t
	} else {
		errs = append(errs, err)
		delete(db.tables, key)
	}
	db.mutex.Unlock()

	if len(errs) > 0 {
		db.log.Error("swapping altered table files", "table", name, "error", errors.Join(errs...))
		return fmt.Errorf("ALTER TABLE %s: %w", name, errors.Join(errs...))
	}
	db.log.Info("table files swapped", "table", name, "columns", newTD.NumFields())
	return db.saveCatalog()
}
