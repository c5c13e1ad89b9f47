package execution

import (
	"fmt"

	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Where passes on the rows of its child for which the condition is TRUE.
// It scrolls whenever its child does and forwards writes to the child.
type Where struct {
	iterator.CursorState
	child iterator.RowSource
	cond  expr.Expr
}

// NewWhere binds cond against the child's schema.
func NewWhere(child iterator.RowSource, cond expr.Expr) (*Where, error) {
	if child == nil {
		return nil, fmt.Errorf("child operator cannot be nil")
	}
	if cond == nil {
		return nil, fmt.Errorf("condition cannot be nil")
	}
	if err := cond.Bind(child.TupleDesc()); err != nil {
		return nil, fmt.Errorf("binding condition %s: %w", cond, err)
	}
	return &Where{CursorState: iterator.NewCursorState(), child: child, cond: cond}, nil
}

func (w *Where) Execute() error {
	w.ResetState()
	return w.child.Execute()
}

func (w *Where) TupleDesc() *tuple.TupleDescription { return w.child.TupleDesc() }
func (w *Where) IsScrollable() bool                 { return w.child.IsScrollable() }

func (w *Where) BeforeFirst() error {
	if err := w.child.BeforeFirst(); err != nil {
		return err
	}
	w.MovedBeforeFirst()
	return nil
}

func (w *Where) AfterLast() error {
	if w.Count() < 0 || !w.child.IsScrollable() {
		return iterator.DrainForward(w)
	}
	if err := w.child.AfterLast(); err != nil {
		return err
	}
	w.MovedAfterLast(-1)
	return nil
}

// seek steps the child with move until a row satisfies the condition. Rows
// inserted through this result are kept without checking the condition.
func (w *Where) seek(move func() (bool, error)) (bool, error) {
	for {
		ok, err := move()
		if err != nil || !ok {
			return false, err
		}
		if w.child.RowInserted() {
			return true, nil
		}
		match, err := expr.Bool(w.cond, w.child)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
}

func (w *Where) Next() (bool, error) {
	ok, err := w.seek(w.child.Next)
	if err != nil {
		return false, err
	}
	return w.MovedNext(ok), nil
}

func (w *Where) Previous() (bool, error) {
	if !w.child.IsScrollable() {
		return false, iterator.ErrForwardOnly("Previous")
	}
	ok, err := w.seek(w.child.Previous)
	if err != nil {
		return false, err
	}
	return w.MovedPrevious(ok), nil
}

func (w *Where) First() (bool, error)         { return iterator.MoveFirst(w) }
func (w *Where) Last() (bool, error)          { return iterator.MoveLast(w) }
func (w *Where) Absolute(n int) (bool, error) { return iterator.MoveAbsolute(w, n) }
func (w *Where) Relative(k int) (bool, error) { return iterator.MoveRelative(w, k) }

func (w *Where) IsLast() (bool, error) {
	if !w.child.IsScrollable() {
		return false, iterator.ErrForwardOnly("IsLast")
	}
	return iterator.ProbeIsLast(w)
}

func (w *Where) RowPosition() (int64, error) {
	if err := w.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	pos, err := w.child.RowPosition()
	if err != nil {
		return 0, err
	}
	w.RememberRow(pos)
	return pos, nil
}

func (w *Where) SetRowPosition(pos int64) error {
	row, err := w.RememberedRow(pos)
	if err != nil {
		return err
	}
	if err := w.child.SetRowPosition(pos); err != nil {
		return err
	}
	w.MovedTo(row)
	return nil
}

func (w *Where) RowInserted() bool { return w.OnRow() && w.child.RowInserted() }
func (w *Where) RowDeleted() bool  { return w.OnRow() && w.child.RowDeleted() }

func (w *Where) Field(i int) (types.Field, error) {
	if err := w.RequireRow("Field"); err != nil {
		return nil, err
	}
	if w.IsNulled() {
		return nil, nil
	}
	return w.child.Field(i)
}

// InsertRow forwards to the child. The new row stays part of the result
// even when it does not satisfy the condition.
func (w *Where) InsertRow(values []types.Field) (int64, error) {
	wr, err := iterator.AsWritable(w.child, "InsertRow")
	if err != nil {
		return 0, err
	}
	pos, err := wr.InsertRow(values)
	if err != nil {
		return 0, err
	}
	row := -1
	if n := w.Count(); n >= 0 {
		row = n + 1
		w.SetCount(row)
	}
	w.RememberPosition(pos, row)
	return pos, nil
}

func (w *Where) UpdateRow(values map[int]types.Field) error {
	if err := w.RequireRow("UpdateRow"); err != nil {
		return err
	}
	wr, err := iterator.AsWritable(w.child, "UpdateRow")
	if err != nil {
		return err
	}
	return wr.UpdateRow(values)
}

func (w *Where) DeleteRow() error {
	if err := w.RequireRow("DeleteRow"); err != nil {
		return err
	}
	wr, err := iterator.AsWritable(w.child, "DeleteRow")
	if err != nil {
		return err
	}
	return wr.DeleteRow()
}
