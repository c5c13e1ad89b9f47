package execution

import (
	"fmt"

	"cursordb/pkg/dberror"
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/logging"
	"cursordb/pkg/trie"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// SortedResult orders its child by a list of ORDER BY expressions.
//
// Execute scans the child once, storing each row position in a transient
// non-unique index keyed by the ORDER BY values; navigation then follows the
// index cursor. Equal keys keep the child's order. Rows inserted through the
// result after it was built are not sorted in: they follow the sorted rows
// in insertion order.
//
// The position of a row is its ordinal in that combined order.
type SortedResult struct {
	iterator.CursorState
	child   iterator.RowSource
	orderBy []expr.Expr
	desc    []bool

	index   *trie.Index
	scroll  *trie.ScrollStatus
	sorted  int
	newRows []int64
	inNew   bool
	newIdx  int
	cur     int64
}

// NewSortedResult binds orderBy against the child's schema. Expressions
// wrapped in expr.Desc sort descending. A forward-only child is wrapped in a
// ScrollableAdapter.
func NewSortedResult(child iterator.RowSource, orderBy []expr.Expr) (*SortedResult, error) {
	if child == nil {
		return nil, fmt.Errorf("child operator cannot be nil")
	}
	if len(orderBy) == 0 {
		return nil, dberror.InvalidArgument("ORDER BY needs at least one expression")
	}
	if err := expr.BindAll(child.TupleDesc(), orderBy...); err != nil {
		return nil, err
	}
	src, err := Scrollable(child)
	if err != nil {
		return nil, err
	}
	desc := make([]bool, len(orderBy))
	for i, e := range orderBy {
		desc[i] = expr.IsDescending(e)
	}
	return &SortedResult{
		CursorState: iterator.NewCursorState(),
		child:       src,
		orderBy:     orderBy,
		desc:        desc,
	}, nil
}

func (s *SortedResult) Execute() error {
	if err := s.child.Execute(); err != nil {
		return err
	}

	keyTypes := make([]types.Type, len(s.orderBy))
	for i, e := range s.orderBy {
		keyTypes[i] = e.ResultType()
	}
	s.index = trie.NewIndex("order-by", false, len(s.orderBy), keyTypes)
	s.sorted = 0
	err := iterator.ForEach(s.child, func() (bool, error) {
		keys, err := expr.EvalAll(s.child, s.orderBy)
		if err != nil {
			return false, err
		}
		pos, err := s.child.RowPosition()
		if err != nil {
			return false, err
		}
		if err := s.index.AddValues(pos, keys); err != nil {
			return false, err
		}
		s.sorted++
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("building sort index: %w", err)
	}

	s.scroll = s.index.CreateScrollStatus(s.desc)
	s.newRows = s.newRows[:0]
	s.inNew, s.newIdx = false, -1
	s.ResetState()
	s.SetCount(s.sorted)
	logging.Debug("sort index built", "rows", s.sorted, "keys", len(s.orderBy))
	return nil
}

func (s *SortedResult) TupleDesc() *tuple.TupleDescription { return s.child.TupleDesc() }
func (s *SortedResult) IsScrollable() bool                 { return true }

func (s *SortedResult) total() int { return s.sorted + len(s.newRows) }

func (s *SortedResult) BeforeFirst() error {
	s.scroll.Reset()
	s.inNew, s.newIdx = false, -1
	s.MovedBeforeFirst()
	return nil
}

func (s *SortedResult) AfterLast() error {
	s.scroll.AfterLast()
	s.inNew, s.newIdx = true, len(s.newRows)
	s.MovedAfterLast(s.total())
	return nil
}

func (s *SortedResult) land(pos int64) error {
	s.cur = pos
	return s.child.SetRowPosition(pos)
}

func (s *SortedResult) Next() (bool, error) {
	if !s.inNew {
		pos, ok, err := s.scroll.Next()
		if err != nil {
			return false, err
		}
		if ok {
			if err := s.land(pos); err != nil {
				return false, err
			}
			return s.MovedNext(true), nil
		}
		s.inNew, s.newIdx = true, -1
	}

	if s.newIdx < len(s.newRows) {
		s.newIdx++
	}
	if s.newIdx == len(s.newRows) {
		return s.MovedNext(false), nil
	}
	if err := s.land(s.newRows[s.newIdx]); err != nil {
		return false, err
	}
	return s.MovedNext(true), nil
}

func (s *SortedResult) Previous() (bool, error) {
	if s.inNew {
		if s.newIdx >= 0 {
			s.newIdx--
		}
		if s.newIdx >= 0 {
			if err := s.land(s.newRows[s.newIdx]); err != nil {
				return false, err
			}
			return s.MovedPrevious(true), nil
		}
		s.inNew = false
		s.scroll.AfterLast()
	}

	pos, ok, err := s.scroll.Previous()
	if err != nil {
		return false, err
	}
	if !ok {
		return s.MovedPrevious(false), nil
	}
	if err := s.land(pos); err != nil {
		return false, err
	}
	return s.MovedPrevious(true), nil
}

func (s *SortedResult) First() (bool, error) { return iterator.MoveFirst(s) }
func (s *SortedResult) Last() (bool, error)  { return iterator.MoveLast(s) }

func (s *SortedResult) Absolute(n int) (bool, error) {
	if n < 0 {
		n = s.total() + 1 + n
	}
	switch {
	case n <= 0:
		return false, s.BeforeFirst()
	case n > s.total():
		return false, s.AfterLast()
	}
	return true, s.SetRowPosition(int64(n - 1))
}

func (s *SortedResult) Relative(k int) (bool, error) {
	switch {
	case s.OnRow():
		return s.Absolute(s.Row() + k)
	case s.IsAfterLast() && k < 0:
		return s.Absolute(s.total() + 1 + k)
	case s.IsBeforeFirst() && k > 0:
		return s.Absolute(k)
	}
	return false, nil
}

func (s *SortedResult) IsLast() (bool, error) {
	return s.OnRow() && s.Row() == s.total(), nil
}

func (s *SortedResult) RowPosition() (int64, error) {
	if err := s.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	return int64(s.Row() - 1), nil
}

// SetRowPosition re-seeks the index cursor from the start for rows of the
// sorted set.
func (s *SortedResult) SetRowPosition(pos int64) error {
	if pos < 0 || pos >= int64(s.total()) {
		return dberror.InvalidArgument("row position %d out of range [0, %d)", pos, s.total())
	}
	if pos >= int64(s.sorted) {
		s.inNew, s.newIdx = true, int(pos)-s.sorted
		if err := s.land(s.newRows[s.newIdx]); err != nil {
			return err
		}
		s.MovedTo(int(pos) + 1)
		return nil
	}

	s.scroll.Reset()
	s.inNew = false
	var childPos int64
	for i := int64(0); i <= pos; i++ {
		p, ok, err := s.scroll.Next()
		if err != nil {
			return err
		}
		if !ok {
			return dberror.Corruption("order-by", "sort index holds fewer than %d rows", pos+1)
		}
		childPos = p
	}
	if err := s.land(childPos); err != nil {
		return err
	}
	s.MovedTo(int(pos) + 1)
	return nil
}

func (s *SortedResult) RowInserted() bool { return s.OnRow() && s.child.RowInserted() }
func (s *SortedResult) RowDeleted() bool  { return s.OnRow() && s.child.RowDeleted() }

func (s *SortedResult) Field(i int) (types.Field, error) {
	if err := s.RequireRow("Field"); err != nil {
		return nil, err
	}
	if s.IsNulled() {
		return nil, nil
	}
	if err := s.child.SetRowPosition(s.cur); err != nil {
		return nil, err
	}
	return s.child.Field(i)
}

// InsertRow inserts through the child and appends the new row after the
// sorted rows.
func (s *SortedResult) InsertRow(values []types.Field) (int64, error) {
	w, err := iterator.AsWritable(s.child, "InsertRow")
	if err != nil {
		return 0, err
	}
	pos, err := w.InsertRow(values)
	if err != nil {
		return 0, err
	}
	s.newRows = append(s.newRows, pos)
	s.SetCount(s.total())
	if s.OnRow() {
		// the child may have moved; put it back under the cursor
		if err := s.child.SetRowPosition(s.cur); err != nil {
			return 0, err
		}
	}
	return int64(s.total() - 1), nil
}

func (s *SortedResult) UpdateRow(values map[int]types.Field) error {
	if err := s.RequireRow("UpdateRow"); err != nil {
		return err
	}
	w, err := iterator.AsWritable(s.child, "UpdateRow")
	if err != nil {
		return err
	}
	if err := s.child.SetRowPosition(s.cur); err != nil {
		return err
	}
	return w.UpdateRow(values)
}

func (s *SortedResult) DeleteRow() error {
	if err := s.RequireRow("DeleteRow"); err != nil {
		return err
	}
	w, err := iterator.AsWritable(s.child, "DeleteRow")
	if err != nil {
		return err
	}
	if err := s.child.SetRowPosition(s.cur); err != nil {
		return err
	}
	return w.DeleteRow()
}
