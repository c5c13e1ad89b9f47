package database

import (
	"fmt"
	"slices"
	"strings"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/dberror"
	"cursordb/pkg/execution"
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/table"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Statement is a change run by Connection.Exec.
type Statement interface {
	// Kind names the statement in errors and logs, e.g. "INSERT".
	Kind() string
	exec(c *Connection) (int, error)
}

// CreateTable creates a table. The columns of PrimaryKey become NOT NULL
// and get a unique index called "<table>_pkey".
type CreateTable struct {
	Name       string
	Columns    []tuple.Column
	PrimaryKey []string
}

// CreateIndex declares an index on an existing table and fills it.
type CreateIndex struct {
	Table string
	Index table.IndexDef
}

// Insert adds rows to a table, either from literal Values or from the rows
// of Query. Columns names the target columns; nil means every column in
// table order. Columns left out are NULL.
type Insert struct {
	Table   string
	Columns []string
	Values  [][]expr.Expr
	Query   Source
}

// Assignment is one "column = value" of an UPDATE. Value is evaluated
// against the row before the update.
type Assignment struct {
	Column string
	Value  expr.Expr
}

// Update changes the rows of a table that match Where, or all of them.
type Update struct {
	Table string
	Set   []Assignment
	Where expr.Expr
}

// Delete removes the rows of a table that match Where, or all of them.
type Delete struct {
	Table string
	Where expr.Expr
}

// CreateView names a query. Views live in memory for the lifetime of the
// database handle and take effect immediately, outside the transaction.
type CreateView struct {
	Name    string
	Columns []string
	Query   Source
}

type viewDef struct {
	name    string
	columns []string
	query   Source
}

func (CreateTable) Kind() string { return "CREATE TABLE" }
func (CreateIndex) Kind() string { return "CREATE INDEX" }
func (Insert) Kind() string      { return "INSERT" }
func (Update) Kind() string      { return "UPDATE" }
func (Delete) Kind() string      { return "DELETE" }
func (CreateView) Kind() string  { return "CREATE VIEW" }

// splitQualified splits "table.column".
func splitQualified(name string) (string, string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// noRow is the row VALUES expressions are evaluated against.
type noRow struct{}

func (noRow) Field(int) (types.Field, error) { return nil, dberror.NoCurrentRow("Field") }

func (s CreateTable) exec(c *Connection) (int, error) {
	if len(s.Columns) == 0 {
		return 0, dberror.InvalidArgument("table %s needs at least one column", s.Name)
	}
	cols := slices.Clone(s.Columns)
	for _, name := range s.PrimaryKey {
		i := slices.IndexFunc(cols, func(col tuple.Column) bool { return strings.EqualFold(col.Name, name) })
		if i < 0 {
			return 0, dberror.NotFound("column", name)
		}
		cols[i].Nullable = false
	}
	td, err := tuple.NewTupleDesc(cols)
	if err != nil {
		return 0, err
	}

	db := c.db
	key := tableKey(s.Name)
	if err := db.reserveName(c.ID, s.Name); err != nil {
		return 0, err
	}
	t, err := table.Create(c.ctx, db.dataDir, s.Name, td)
	if err != nil {
		db.release(c.ID, key, false)
		return 0, err
	}
	db.register(key, t)

	err = c.ctx.Add(&transaction.Entry{
		Lock:      lock.TableResource(t.Name()),
		LockLevel: lock.Table,
		Discard:   func() { db.release(c.ID, key, true) },
	})
	if err != nil {
		db.release(c.ID, key, true)
		return 0, err
	}

	if len(s.PrimaryKey) > 0 {
		pk := table.IndexDef{Name: s.Name + "_pkey", Columns: s.PrimaryKey, Unique: true}
		if err := createIndex(c, t, pk); err != nil {
			return 0, err
		}
	}
	c.ctx.AfterCommit(func() error { return db.publish(c.ID, key) })
	return 0, nil
}

func (s CreateIndex) exec(c *Connection) (int, error) {
	t, err := c.db.lookupTable(c.ID, s.Table)
	if err != nil {
		return 0, err
	}
	return 0, createIndex(c, t, s.Index)
}

// createIndex declares def on t in c's transaction. The index enters the
// catalog when the transaction commits.
func createIndex(c *Connection, t *table.Table, def table.IndexDef) error {
	db := c.db
	key := indexKey(t.Name(), def.Name)
	if err := db.reserveIndex(c.ID, key); err != nil {
		return err
	}
	if _, err := t.CreateIndex(c.ctx, def); err != nil {
		db.release(c.ID, key, false)
		return err
	}
	if err := c.ctx.Add(&transaction.Entry{Discard: func() { db.release(c.ID, key, false) }}); err != nil {
		db.release(c.ID, key, false)
		return err
	}
	c.ctx.AfterCommit(func() error { return db.publish(c.ID, key) })
	return nil
}

// targetColumns resolves an INSERT column list.
func targetColumns(td *tuple.TupleDescription, names []string) ([]int, error) {
	if names == nil {
		out := make([]int, td.NumFields())
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, len(names))
	for i, name := range names {
		c, err := td.FindColumn("", name)
		if err != nil {
			return nil, err
		}
		if slices.Contains(out[:i], c) {
			return nil, dberror.InvalidArgument("column %s listed twice", name)
		}
		out[i] = c
	}
	return out, nil
}

func (s Insert) exec(c *Connection) (int, error) {
	t, err := c.db.lookupTable(c.ID, s.Table)
	if err != nil {
		return 0, err
	}
	td := t.TupleDesc()
	targets, err := targetColumns(td, s.Columns)
	if err != nil {
		return 0, err
	}

	insert := func(vals []types.Field) error {
		if len(vals) != len(targets) {
			return dberror.InvalidArgument("INSERT into %s has %d values for %d columns", t.Name(), len(vals), len(targets))
		}
		row := make([]types.Field, td.NumFields())
		for j, col := range targets {
			row[col] = vals[j]
		}
		_, err := t.Insert(c.ctx, row)
		return err
	}

	n := 0
	switch {
	case s.Query != nil && s.Values != nil:
		return 0, dberror.InvalidArgument("INSERT takes either VALUES or a query")
	case s.Query != nil:
		src, err := s.Query.open(c)
		if err != nil {
			return 0, err
		}
		if err := src.Execute(); err != nil {
			return 0, err
		}
		width := src.TupleDesc().NumFields()
		err = iterator.ForEach(src, func() (bool, error) {
			vals := make([]types.Field, width)
			for i := range vals {
				v, err := src.Field(i)
				if err != nil {
					return false, err
				}
				vals[i] = v
			}
			if err := insert(vals); err != nil {
				return false, err
			}
			n++
			return true, nil
		})
		if err != nil {
			return 0, err
		}
	default:
		for _, exprs := range s.Values {
			vals, err := expr.EvalAll(noRow{}, exprs)
			if err != nil {
				return 0, err
			}
			if err := insert(vals); err != nil {
				return 0, err
			}
			n++
		}
	}
	return n, nil
}

// scan opens a writable cursor over the rows of tableName matching where.
func scan(c *Connection, tableName string, where expr.Expr) (iterator.RowSource, error) {
	t, err := c.db.lookupTable(c.ID, tableName)
	if err != nil {
		return nil, err
	}
	var src iterator.RowSource = table.NewCursor(t, c.ctx, c.isolation)
	if where != nil {
		if src, err = execution.NewWhere(src, where); err != nil {
			return nil, err
		}
	}
	return src, src.Execute()
}

func (s Update) exec(c *Connection) (int, error) {
	if len(s.Set) == 0 {
		return 0, dberror.InvalidArgument("UPDATE needs at least one assignment")
	}
	src, err := scan(c, s.Table, s.Where)
	if err != nil {
		return 0, err
	}
	td := src.TupleDesc()
	cols := make([]int, len(s.Set))
	for i, a := range s.Set {
		if cols[i], err = td.FindColumn("", a.Column); err != nil {
			return 0, err
		}
		if err := a.Value.Bind(td); err != nil {
			return 0, fmt.Errorf("binding %s: %w", a.Column, err)
		}
	}
	w, err := iterator.AsWritable(src, "UpdateRow")
	if err != nil {
		return 0, err
	}

	n := 0
	err = iterator.ForEach(src, func() (bool, error) {
		values := make(map[int]types.Field, len(s.Set))
		for i, a := range s.Set {
			v, err := a.Value.Eval(src)
			if err != nil {
				return false, err
			}
			values[cols[i]] = v
		}
		if err := w.UpdateRow(values); err != nil {
			return false, err
		}
		n++
		return true, nil
	})
	return n, err
}

func (s Delete) exec(c *Connection) (int, error) {
	src, err := scan(c, s.Table, s.Where)
	if err != nil {
		return 0, err
	}
	w, err := iterator.AsWritable(src, "DeleteRow")
	if err != nil {
		return 0, err
	}
	n := 0
	err = iterator.ForEach(src, func() (bool, error) {
		if err := w.DeleteRow(); err != nil {
			return false, err
		}
		n++
		return true, nil
	})
	return n, err
}

func (s CreateView) exec(c *Connection) (int, error) {
	if s.Query == nil {
		return 0, dberror.InvalidArgument("view %s needs a query", s.Name)
	}
	src, err := s.Query.open(c)
	if err != nil {
		return 0, err
	}
	if _, err := execution.NewView(s.Name, src, s.Columns); err != nil {
		return 0, err
	}
	if err := c.db.reserveName(c.ID, s.Name); err != nil {
		return 0, err
	}
	c.db.addView(c.ID, &viewDef{name: s.Name, columns: slices.Clone(s.Columns), query: s.Query})
	c.log.Info("view created", "view", s.Name)
	return 0, nil
}
