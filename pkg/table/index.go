package table

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
	"cursordb/pkg/trie"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// IndexDef declares an index over columns of a table.
type IndexDef struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// Index is a declared index of a table, persisted in its own trie file and
// kept in step with committed rows.
type Index struct {
	IndexDef
	cols []int
	trie *trie.Index
	path string
}

// Trie returns the underlying trie.
func (ix *Index) Trie() *trie.Index { return ix.trie }

// Path returns the index file.
func (ix *Index) Path() string { return ix.path }

// ColumnIndexes returns the table column of each key column.
func (ix *Index) ColumnIndexes() []int { return ix.cols }

func (ix *Index) keys(row *tuple.Tuple) []types.Field {
	fields := row.Fields()
	out := make([]types.Field, len(ix.cols))
	for i, c := range ix.cols {
		out[i] = fields[c]
	}
	return out
}

// IndexPath returns the file of index name on table.
func IndexPath(dir, table, name string) string {
	return filepath.Join(dir, table+"."+name+".idx")
}

func (t *Table) resolveIndex(def IndexDef) ([]int, []types.Type, error) {
	if def.Name == "" || len(def.Columns) == 0 {
		return nil, nil, dberror.InvalidArgument("index needs a name and at least one column")
	}
	cols := make([]int, len(def.Columns))
	keyTypes := make([]types.Type, len(def.Columns))
	for i, name := range def.Columns {
		c, err := t.td.FindColumn("", name)
		if err != nil {
			return nil, nil, err
		}
		cols[i] = c
		keyTypes[i] = t.td.Columns[c].Type
	}
	return cols, keyTypes, nil
}

// indexUnit is the creation of an index file. The trie is flushed on
// commit; rolling back deletes the file.
type indexUnit struct {
	ix      *Index
	removed bool
}

func (u *indexUnit) Commit() error { return u.ix.trie.Flush() }

func (u *indexUnit) Undo() error { return u.remove() }

func (u *indexUnit) Rollback() error { return u.remove() }

func (u *indexUnit) remove() error {
	if u.removed {
		return nil
	}
	u.removed = true
	err := u.ix.trie.Close()
	if rmErr := os.Remove(u.ix.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, dberror.IOFailure("RemoveIndex", rmErr))
	}
	return err
}

// CreateIndex declares a new index and fills it from the committed rows.
// It takes a table lock, so no other connection may have pending changes
// on the table.
func (t *Table) CreateIndex(ctx *transaction.Context, def IndexDef) (*Index, error) {
	cols, keyTypes, err := t.resolveIndex(def)
	if err != nil {
		return nil, err
	}
	if _, ok := t.Index(def.Name); ok {
		return nil, dberror.InvalidArgument("index %s already exists on %s", def.Name, t.name)
	}
	if err := ctx.Lock(lock.TableResource(t.name), lock.Table); err != nil {
		return nil, err
	}

	path := IndexPath(t.dir, t.name, def.Name)
	tr, err := trie.Create(path, def.Name, def.Unique, keyTypes)
	if err != nil {
		return nil, err
	}
	ix := &Index{IndexDef: def, cols: cols, trie: tr, path: path}
	unit := &indexUnit{ix: ix}

	if err := t.fill(ix); err != nil {
		return nil, errors.Join(err, unit.remove())
	}

	t.mu.Lock()
	t.indexes = append(t.indexes, ix)
	t.mu.Unlock()

	if err := ctx.Add(&transaction.Entry{Unit: unit, Discard: func() { t.detach(ix) }}); err != nil {
		t.detach(ix)
		return nil, errors.Join(err, unit.remove())
	}
	logging.WithIndex(def.Name).Info("index created",
		"table", t.name, "columns", strings.Join(def.Columns, ","), "unique", def.Unique)
	return ix, nil
}

// fill adds every committed row to ix.
func (t *Table) fill(ix *Index) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, off := range t.rows {
		row, err := t.readCommittedLocked(off)
		if err != nil {
			return err
		}
		if row == nil {
			continue
		}
		if err := ix.trie.AddValues(off, ix.keys(row)); err != nil {
			return err
		}
	}
	return nil
}

// OpenIndex attaches an index file written by an earlier CreateIndex.
func (t *Table) OpenIndex(def IndexDef) error {
	cols, keyTypes, err := t.resolveIndex(def)
	if err != nil {
		return err
	}
	path := IndexPath(t.dir, t.name, def.Name)
	tr, err := trie.Open(path, def.Name, keyTypes)
	if err != nil {
		return err
	}
	if tr.IsUnique() != def.Unique {
		_ = tr.Close()
		return dberror.Corruption(path, "index %s: file and catalog disagree on uniqueness", def.Name)
	}

	t.mu.Lock()
	t.indexes = append(t.indexes, &Index{IndexDef: def, cols: cols, trie: tr, path: path})
	t.mu.Unlock()
	return nil
}

func (t *Table) detach(ix *Index) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := slices.Index(t.indexes, ix); i >= 0 {
		t.indexes = slices.Delete(t.indexes, i, i+1)
	}
}

// Index returns the declared index called name.
func (t *Table) Index(name string) (*Index, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ix := range t.indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return nil, false
}

// Indexes returns the declared indexes.
func (t *Table) Indexes() []*Index {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.indexes)
}

// checkUnique fails with a duplicate-key error when u's values collide on a
// unique index with a committed row that b does not change, or with another
// row pending in b. Rows with a NULL key column never collide. The caller
// holds t.mu.
func (t *Table) checkUnique(b *batch, u *RowUnit) error {
	for _, ix := range t.indexes {
		if !ix.Unique {
			continue
		}
		keys := ix.keys(u.values)
		if slices.Contains(keys, nil) {
			continue
		}

		offs, err := ix.trie.FindRows(keys, false)
		if err != nil {
			return err
		}
		for _, off := range offs {
			if off == u.offset {
				continue
			}
			if other, ok := b.units[off]; ok && (other.deleted || !sameKeys(ix.keys(other.values), keys)) {
				continue
			}
			return dberror.DuplicateKey(ix.Name, formatKeys(keys))
		}

		for _, row := range b.order {
			other := b.units[row]
			if row == u.key.Row || other.deleted {
				continue
			}
			if sameKeys(ix.keys(other.values), keys) {
				return dberror.DuplicateKey(ix.Name, formatKeys(keys))
			}
		}
	}
	return nil
}

func sameKeys(a, b []types.Field) bool {
	for i := range a {
		if !types.FieldsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func formatKeys(keys []types.Field) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k == nil {
			parts[i] = "NULL"
		} else {
			parts[i] = k.String()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
