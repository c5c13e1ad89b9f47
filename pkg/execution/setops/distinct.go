// Package setops implements DISTINCT and UNION ALL.
package setops

import (
	"errors"
	"fmt"

	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/trie"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Distinct removes duplicate rows from its child. Two rows are duplicates
// when every column is equal, NULLs included.
//
// A transient unique index over all columns maps each distinct row to the
// child position where it first appeared. Moving forward, a row is kept when
// its key is new; moving backward, when the index points back at it. The
// backward test needs every row indexed, so AfterLast scans forward.
type Distinct struct {
	iterator.CursorState
	child iterator.RowSource
	index *trie.Index
	cols  int
}

// NewDistinct returns a Distinct over child.
func NewDistinct(child iterator.RowSource) (*Distinct, error) {
	if child == nil {
		return nil, fmt.Errorf("child operator cannot be nil")
	}
	return &Distinct{
		CursorState: iterator.NewCursorState(),
		child:       child,
		cols:        child.TupleDesc().NumFields(),
	}, nil
}

func (d *Distinct) Execute() error {
	if err := d.child.Execute(); err != nil {
		return err
	}
	td := d.child.TupleDesc()
	keyTypes := make([]types.Type, d.cols)
	for i := range keyTypes {
		keyTypes[i] = td.Columns[i].Type
	}
	d.index = trie.NewIndex("distinct", true, d.cols, keyTypes)
	d.ResetState()
	return nil
}

func (d *Distinct) TupleDesc() *tuple.TupleDescription { return d.child.TupleDesc() }
func (d *Distinct) IsScrollable() bool                 { return d.child.IsScrollable() }

func (d *Distinct) rowKey() ([]types.Field, error) {
	keys := make([]types.Field, d.cols)
	for i := range keys {
		f, err := d.child.Field(i)
		if err != nil {
			return nil, err
		}
		keys[i] = f
	}
	return keys, nil
}

// firstSeen reports whether the child's current row is the first
// occurrence of its values, indexing it if it has not been seen at all.
func (d *Distinct) firstSeen() (bool, error) {
	keys, err := d.rowKey()
	if err != nil {
		return false, err
	}
	pos, err := d.child.RowPosition()
	if err != nil {
		return false, err
	}
	err = d.index.AddValues(pos, keys)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, dberror.ErrDuplicateKey) {
		return false, err
	}
	found, err := d.index.FindRows(keys, false)
	if err != nil {
		return false, err
	}
	return len(found) == 1 && found[0] == pos, nil
}

func (d *Distinct) seek(move func() (bool, error)) (bool, error) {
	for {
		ok, err := move()
		if err != nil || !ok {
			return false, err
		}
		first, err := d.firstSeen()
		if err != nil {
			return false, err
		}
		if first {
			return true, nil
		}
	}
}

func (d *Distinct) BeforeFirst() error {
	if err := d.child.BeforeFirst(); err != nil {
		return err
	}
	d.MovedBeforeFirst()
	return nil
}

func (d *Distinct) AfterLast() error {
	if d.Count() < 0 || !d.child.IsScrollable() {
		return iterator.DrainForward(d)
	}
	if err := d.child.AfterLast(); err != nil {
		return err
	}
	d.MovedAfterLast(-1)
	return nil
}

func (d *Distinct) Next() (bool, error) {
	ok, err := d.seek(d.child.Next)
	if err != nil {
		return false, err
	}
	return d.MovedNext(ok), nil
}

func (d *Distinct) Previous() (bool, error) {
	if !d.child.IsScrollable() {
		return false, iterator.ErrForwardOnly("Previous")
	}
	ok, err := d.seek(d.child.Previous)
	if err != nil {
		return false, err
	}
	return d.MovedPrevious(ok), nil
}

func (d *Distinct) First() (bool, error)         { return iterator.MoveFirst(d) }
func (d *Distinct) Last() (bool, error)          { return iterator.MoveLast(d) }
func (d *Distinct) Absolute(n int) (bool, error) { return iterator.MoveAbsolute(d, n) }
func (d *Distinct) Relative(k int) (bool, error) { return iterator.MoveRelative(d, k) }

func (d *Distinct) IsLast() (bool, error) {
	if !d.child.IsScrollable() {
		return false, iterator.ErrForwardOnly("IsLast")
	}
	return iterator.ProbeIsLast(d)
}

func (d *Distinct) RowPosition() (int64, error) {
	if err := d.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	pos, err := d.child.RowPosition()
	if err != nil {
		return 0, err
	}
	d.RememberRow(pos)
	return pos, nil
}

func (d *Distinct) SetRowPosition(pos int64) error {
	row, err := d.RememberedRow(pos)
	if err != nil {
		return err
	}
	if err := d.child.SetRowPosition(pos); err != nil {
		return err
	}
	d.MovedTo(row)
	return nil
}

func (d *Distinct) RowInserted() bool { return d.OnRow() && d.child.RowInserted() }
func (d *Distinct) RowDeleted() bool  { return d.OnRow() && d.child.RowDeleted() }

func (d *Distinct) Field(i int) (types.Field, error) {
	if err := d.RequireRow("Field"); err != nil {
		return nil, err
	}
	if d.IsNulled() {
		return nil, nil
	}
	return d.child.Field(i)
}
