package execution

import (
	"fmt"

	"cursordb/pkg/iterator"
	"cursordb/pkg/logging"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// ScrollableAdapter makes a forward-only source scrollable. It records the
// child position of every row reached by a forward scan and replays those
// positions for backward and absolute moves. The child is only advanced
// from the furthest row recorded.
type ScrollableAdapter struct {
	iterator.CursorState
	child     iterator.RowSource
	seen      []int64
	exhausted bool
	idx       int // index into seen; -1 before first, len(seen) after last
	childIdx  int // index into seen the child is positioned on, -1 before first
}

// NewScrollableAdapter wraps child.
func NewScrollableAdapter(child iterator.RowSource) (*ScrollableAdapter, error) {
	if child == nil {
		return nil, fmt.Errorf("child operator cannot be nil")
	}
	return &ScrollableAdapter{CursorState: iterator.NewCursorState(), child: child, idx: -1, childIdx: -1}, nil
}

// Scrollable returns src unchanged when it scrolls natively, and wrapped in
// a ScrollableAdapter otherwise.
func Scrollable(src iterator.RowSource) (iterator.RowSource, error) {
	if src.IsScrollable() {
		return src, nil
	}
	return NewScrollableAdapter(src)
}

func (a *ScrollableAdapter) Execute() error {
	if err := a.child.Execute(); err != nil {
		return err
	}
	a.seen = a.seen[:0]
	a.exhausted = false
	a.idx, a.childIdx = -1, -1
	a.ResetState()
	return nil
}

func (a *ScrollableAdapter) TupleDesc() *tuple.TupleDescription { return a.child.TupleDesc() }
func (a *ScrollableAdapter) IsScrollable() bool                 { return true }

// extend advances the child past the furthest recorded row.
func (a *ScrollableAdapter) extend() (bool, error) {
	if a.exhausted {
		return false, nil
	}
	last := len(a.seen) - 1
	if a.childIdx != last {
		var err error
		if last < 0 {
			err = a.child.BeforeFirst()
		} else {
			err = a.child.SetRowPosition(a.seen[last])
		}
		if err != nil {
			return false, err
		}
		a.childIdx = last
	}

	ok, err := a.child.Next()
	if err != nil {
		return false, err
	}
	if !ok {
		a.exhausted = true
		a.childIdx = len(a.seen)
		logging.Debug("scrollable adapter reached end of child", "rows", len(a.seen))
		return false, nil
	}
	pos, err := a.child.RowPosition()
	if err != nil {
		return false, err
	}
	a.seen = append(a.seen, pos)
	a.childIdx = len(a.seen) - 1
	return true, nil
}

// moveTo positions the child on recorded row i.
func (a *ScrollableAdapter) moveTo(i int) error {
	if a.childIdx != i {
		if err := a.child.SetRowPosition(a.seen[i]); err != nil {
			return err
		}
		a.childIdx = i
	}
	a.idx = i
	return nil
}

func (a *ScrollableAdapter) BeforeFirst() error {
	a.idx = -1
	a.MovedBeforeFirst()
	return nil
}

func (a *ScrollableAdapter) AfterLast() error {
	for {
		ok, err := a.extend()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}
	a.idx = len(a.seen)
	a.MovedAfterLast(len(a.seen))
	return nil
}

func (a *ScrollableAdapter) Next() (bool, error) {
	next := a.idx + 1
	if next > len(a.seen) {
		next = len(a.seen)
	}
	if next == len(a.seen) {
		ok, err := a.extend()
		if err != nil {
			return false, err
		}
		if !ok {
			a.idx = len(a.seen)
			return a.MovedNext(false), nil
		}
	}
	if err := a.moveTo(next); err != nil {
		return false, err
	}
	a.MovedTo(next + 1)
	return true, nil
}

func (a *ScrollableAdapter) Previous() (bool, error) {
	if a.idx <= 0 {
		a.idx = -1
		return a.MovedPrevious(false), nil
	}
	prev := a.idx - 1
	if prev >= len(a.seen) {
		prev = len(a.seen) - 1
	}
	if err := a.moveTo(prev); err != nil {
		return false, err
	}
	a.MovedTo(prev + 1)
	return true, nil
}

func (a *ScrollableAdapter) First() (bool, error) { return a.Absolute(1) }
func (a *ScrollableAdapter) Last() (bool, error)  { return a.Absolute(-1) }

func (a *ScrollableAdapter) Absolute(n int) (bool, error) {
	if n < 0 {
		if err := a.AfterLast(); err != nil {
			return false, err
		}
		n = len(a.seen) + 1 + n
	}
	if n <= 0 {
		return false, a.BeforeFirst()
	}
	for len(a.seen) < n {
		ok, err := a.extend()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, a.AfterLast()
		}
	}
	if err := a.moveTo(n - 1); err != nil {
		return false, err
	}
	a.MovedTo(n)
	return true, nil
}

func (a *ScrollableAdapter) Relative(k int) (bool, error) {
	switch {
	case a.IsBeforeFirst():
		if k <= 0 {
			return false, nil
		}
		return a.Absolute(k)
	case a.IsAfterLast():
		if k >= 0 {
			return false, nil
		}
		return a.Absolute(k)
	}
	target := a.idx + 1 + k
	if target <= 0 {
		return false, a.BeforeFirst()
	}
	return a.Absolute(target)
}

func (a *ScrollableAdapter) IsLast() (bool, error) {
	if !a.OnRow() {
		return false, nil
	}
	if a.idx < len(a.seen)-1 {
		return false, nil
	}
	ok, err := a.extend()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (a *ScrollableAdapter) RowPosition() (int64, error) {
	if err := a.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	return int64(a.idx), nil
}

func (a *ScrollableAdapter) SetRowPosition(pos int64) error {
	if pos < 0 || pos >= int64(len(a.seen)) {
		return fmt.Errorf("row position %d was never reached", pos)
	}
	if err := a.moveTo(int(pos)); err != nil {
		return err
	}
	a.MovedTo(int(pos) + 1)
	return nil
}

func (a *ScrollableAdapter) RowInserted() bool { return a.OnRow() && a.child.RowInserted() }
func (a *ScrollableAdapter) RowDeleted() bool  { return a.OnRow() && a.child.RowDeleted() }

func (a *ScrollableAdapter) Field(i int) (types.Field, error) {
	if err := a.RequireRow("Field"); err != nil {
		return nil, err
	}
	if a.IsNulled() {
		return nil, nil
	}
	if err := a.moveTo(a.idx); err != nil {
		return nil, err
	}
	return a.child.Field(i)
}

// InsertRow forwards to the child, then scans the child until the new row
// is recorded so that its adapter position can be returned.
func (a *ScrollableAdapter) InsertRow(values []types.Field) (int64, error) {
	w, err := iterator.AsWritable(a.child, "InsertRow")
	if err != nil {
		return 0, err
	}
	childPos, err := w.InsertRow(values)
	if err != nil {
		return 0, err
	}
	a.exhausted = false
	a.SetCount(-1)
	for {
		ok, err := a.extend()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("inserted row %d not visible through the child", childPos)
		}
		if last := len(a.seen) - 1; a.seen[last] == childPos {
			return int64(last), nil
		}
	}
}

func (a *ScrollableAdapter) UpdateRow(values map[int]types.Field) error {
	if err := a.RequireRow("UpdateRow"); err != nil {
		return err
	}
	w, err := iterator.AsWritable(a.child, "UpdateRow")
	if err != nil {
		return err
	}
	if err := a.moveTo(a.idx); err != nil {
		return err
	}
	return w.UpdateRow(values)
}

func (a *ScrollableAdapter) DeleteRow() error {
	if err := a.RequireRow("DeleteRow"); err != nil {
		return err
	}
	w, err := iterator.AsWritable(a.child, "DeleteRow")
	if err != nil {
		return err
	}
	if err := a.moveTo(a.idx); err != nil {
		return err
	}
	return w.DeleteRow()
}
