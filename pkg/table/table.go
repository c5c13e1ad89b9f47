// Package table stores the rows of one table in a row file, keeps the
// directory of committed rows and the table's declared indexes, and exposes
// rows through a scrollable, updatable cursor.
//
// Every change goes through a connection's transaction context: a RowUnit
// per row version, plus one batch entry per transaction that updates the
// directory and indexes once the records are written.
package table

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
	"cursordb/pkg/primitives"
	"cursordb/pkg/storage"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Table is an open table.
//
// Thread-safety: mu guards the directory, the index list and the pending
// batches, and orders record reads against record writes.
type Table struct {
	mu      sync.RWMutex
	name    string
	dir     string
	td      *tuple.TupleDescription
	file    *storage.File
	rows    []int64 // committed rows, ascending offsets
	indexes []*Index
	batches map[string]*batch
	inserts atomic.Int64
	log     *slog.Logger
}

// RowPath returns the row file of table name.
func RowPath(dir, name string) string {
	return filepath.Join(dir, name+".rows")
}

// qualify stamps every column with the table name.
func qualify(name string, td *tuple.TupleDescription) (*tuple.TupleDescription, error) {
	cols := slices.Clone(td.Columns)
	for i := range cols {
		cols[i].Table = name
	}
	return tuple.NewTupleDesc(cols)
}

func newTable(dir, name string, td *tuple.TupleDescription, f *storage.File, rows []int64) *Table {
	return &Table{
		name:    name,
		dir:     dir,
		td:      td,
		file:    f,
		rows:    rows,
		batches: make(map[string]*batch),
		log:     logging.WithTable(name),
	}
}

// Create makes an empty table as part of ctx's transaction. Rolling the
// transaction back deletes the row file.
func Create(ctx *transaction.Context, dir, name string, td *tuple.TupleDescription) (*Table, error) {
	if name == "" {
		return nil, dberror.InvalidArgument("table name cannot be empty")
	}
	td, err := qualify(name, td)
	if err != nil {
		return nil, err
	}

	f, err := storage.CreateFile(RowPath(dir, name))
	if err != nil {
		return nil, err
	}
	if err := f.WriteAt(fileHeader(), 0); err != nil {
		return nil, errors.Join(err, f.Remove())
	}
	if err := ctx.Add(&transaction.Entry{Unit: storage.NewNewFileUnit(f)}); err != nil {
		return nil, errors.Join(err, f.Remove())
	}

	t := newTable(dir, name, td, f, nil)
	t.log.Info("table created", "columns", td.NumFields(), "path", f.Path())
	return t, nil
}

// Open reads the row file of an existing table and builds its directory.
// Declared indexes are attached afterwards with OpenIndex.
func Open(dir, name string, td *tuple.TupleDescription) (*Table, error) {
	td, err := qualify(name, td)
	if err != nil {
		return nil, err
	}
	f, err := storage.OpenFile(RowPath(dir, name))
	if err != nil {
		return nil, err
	}
	if err := checkFileHeader(f); err != nil {
		return nil, errors.Join(err, f.Close())
	}
	rows, err := scanRows(f)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}

	t := newTable(dir, name, td, f, rows)
	t.log.Debug("table opened", "rows", len(rows))
	return t, nil
}

func (t *Table) Name() string                       { return t.name }
func (t *Table) TupleDesc() *tuple.TupleDescription { return t.td }
func (t *Table) Path() string                       { return t.file.Path() }

// Len returns the number of committed rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Rows returns the offsets of the committed rows in file order.
func (t *Table) Rows() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rows)
}

// Flush writes the modified nodes of every declared index.
func (t *Table) Flush() error {
	var errs []error
	for _, ix := range t.Indexes() {
		if err := ix.trie.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flushing index %s: %w", ix.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes the indexes and the row file.
func (t *Table) Close() error {
	var errs []error
	for _, ix := range t.Indexes() {
		if err := ix.trie.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (t *Table) addRowLocked(off int64) {
	i, found := slices.BinarySearch(t.rows, off)
	if !found {
		t.rows = slices.Insert(t.rows, i, off)
	}
}

func (t *Table) removeRowLocked(off int64) {
	if i, found := slices.BinarySearch(t.rows, off); found {
		t.rows = slices.Delete(t.rows, i, i+1)
	}
}

func (t *Table) latest(ctx *transaction.Context, pos int64) *RowUnit {
	if ctx == nil {
		return nil
	}
	u, _ := ctx.Latest(transaction.RowKey{Table: t.name, Row: pos}).(*RowUnit)
	return u
}

// readCommittedLocked decodes the committed row at off, or returns nil when
// it has been deleted. The caller holds t.mu.
func (t *Table) readCommittedLocked(off int64) (*tuple.Tuple, error) {
	data, err := readRow(t.file, off)
	if err != nil || data == nil {
		return nil, err
	}
	return tuple.Decode(t.td, data, t.file.Path())
}

// Read returns the row at pos as ctx's transaction sees it: its own newest
// version when it changed the row, the committed values otherwise. deleted
// is set when the row no longer exists; the last known values are returned
// with it when there are any.
func (t *Table) Read(ctx *transaction.Context, pos int64) (row *tuple.Tuple, deleted bool, err error) {
	if u := t.latest(ctx, pos); u != nil {
		return u.values, u.deleted, nil
	}
	if primitives.IsInsertTagged(pos) {
		return nil, false, dberror.NotFound("row", fmt.Sprintf("%s@%d", t.name, pos))
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	row, err = t.readCommittedLocked(pos)
	if err != nil {
		return nil, false, err
	}
	return row, row == nil, nil
}

// current returns the pending version of pos, if any, and the committed
// values of the row.
func (t *Table) current(ctx *transaction.Context, pos int64, op string) (*RowUnit, *tuple.Tuple, error) {
	if prev := t.latest(ctx, pos); prev != nil {
		if prev.deleted {
			return nil, nil, dberror.InvalidArgument("%s: row %d of %s has been deleted", op, pos, t.name)
		}
		return prev, prev.orig, nil
	}
	row, deleted, err := t.Read(nil, pos)
	if err != nil {
		return nil, nil, err
	}
	if deleted {
		return nil, nil, dberror.NotFound("row", fmt.Sprintf("%s@%d", t.name, pos))
	}
	return nil, row, nil
}

func (t *Table) checkNulls(row *tuple.Tuple) error {
	for i, f := range row.Fields() {
		if f == nil && !t.td.Columns[i].Nullable {
			return dberror.InvalidArgument("column %s of %s cannot be NULL", t.td.Columns[i].Name, t.name)
		}
	}
	return nil
}

// Insert adds a row in ctx's transaction and returns its tagged position,
// valid until the transaction ends.
func (t *Table) Insert(ctx *transaction.Context, values []types.Field) (int64, error) {
	row, err := tuple.FromFields(t.td, values...)
	if err != nil {
		return 0, err
	}
	if err := t.checkNulls(row); err != nil {
		return 0, err
	}

	pos := primitives.TagInsert(t.inserts.Add(1))
	u := &RowUnit{
		table:  t,
		key:    transaction.RowKey{Table: t.name, Row: pos},
		offset: primitives.UnassignedOffset,
		values: row,
	}
	if err := t.apply(ctx, u, nil, lock.Insert); err != nil {
		return 0, err
	}
	return pos, nil
}

// Update changes columns of the row at pos. values maps column indexes to
// new values.
func (t *Table) Update(ctx *transaction.Context, pos int64, values map[int]types.Field) error {
	prev, orig, err := t.current(ctx, pos, "UpdateRow")
	if err != nil {
		return err
	}
	base := orig
	if prev != nil {
		base = prev.values
	}

	row := base.Clone()
	for i, v := range values {
		if err := row.SetField(i, v); err != nil {
			return err
		}
	}
	if err := t.checkNulls(row); err != nil {
		return err
	}

	u := &RowUnit{table: t, key: transaction.RowKey{Table: t.name, Row: pos}, offset: pos, orig: orig, values: row}
	if prev != nil {
		u.offset = prev.offset
	}
	return t.apply(ctx, u, prev, lock.Write)
}

// Delete removes the row at pos.
func (t *Table) Delete(ctx *transaction.Context, pos int64) error {
	prev, orig, err := t.current(ctx, pos, "DeleteRow")
	if err != nil {
		return err
	}
	u := &RowUnit{table: t, key: transaction.RowKey{Table: t.name, Row: pos}, offset: pos, orig: orig, values: orig, deleted: true}
	if prev != nil {
		u.offset, u.values = prev.offset, prev.values
	}
	return t.apply(ctx, u, prev, lock.Write)
}

// apply checks u against the unique indexes and appends it to the pending
// list under a row lock of the given level.
func (t *Table) apply(ctx *transaction.Context, u *RowUnit, prev *RowUnit, level lock.Level) error {
	b, err := t.batchFor(ctx)
	if err != nil {
		return err
	}
	if !u.deleted {
		t.mu.RLock()
		err := t.checkUnique(b, u)
		t.mu.RUnlock()
		if err != nil {
			return err
		}
	}

	entry := &transaction.Entry{
		Unit:      u,
		Row:       &u.key,
		Lock:      lock.Resource{Table: t.name, Row: u.key.Row},
		LockLevel: level,
		Discard: func() {
			t.mu.Lock()
			b.restore(u.key.Row, prev)
			t.mu.Unlock()
		},
	}
	if err := ctx.Add(entry); err != nil {
		return err
	}

	t.mu.Lock()
	b.put(u)
	t.mu.Unlock()
	return nil
}

// PendingInserts returns the positions of the rows ctx's transaction
// inserted and has not deleted again, in insertion order.
func (t *Table) PendingInserts(ctx *transaction.Context) []int64 {
	var out []int64
	seen := make(map[int64]bool)
	for _, unit := range ctx.Units(t.name) {
		u, ok := unit.(*RowUnit)
		if !ok || !u.Inserted() || seen[u.key.Row] {
			continue
		}
		seen[u.key.Row] = true
		if latest := t.latest(ctx, u.key.Row); latest != nil && !latest.deleted {
			out = append(out, u.key.Row)
		}
	}
	return out
}
