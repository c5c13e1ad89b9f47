package setops

import (
	"fmt"

	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

type unionPos struct {
	row  int
	side int
	pos  int64
}

// UnionAll returns every row of its first child followed by every row of
// its second. It scrolls when both children do.
type UnionAll struct {
	iterator.CursorState
	children  [2]iterator.RowSource
	side      int
	positions *iterator.PositionTable[unionPos]
}

// NewUnionAll requires both children to have the same number of columns;
// the schema is the first child's.
func NewUnionAll(first, second iterator.RowSource) (*UnionAll, error) {
	if first == nil || second == nil {
		return nil, fmt.Errorf("union children cannot be nil")
	}
	if a, b := first.TupleDesc().NumFields(), second.TupleDesc().NumFields(); a != b {
		return nil, dberror.InvalidArgument("UNION ALL of %d and %d columns", a, b)
	}
	return &UnionAll{
		CursorState: iterator.NewCursorState(),
		children:    [2]iterator.RowSource{first, second},
		positions:   iterator.NewPositionTable[unionPos](),
	}, nil
}

func (u *UnionAll) Execute() error {
	for _, c := range u.children {
		if err := c.Execute(); err != nil {
			return err
		}
	}
	u.side = 0
	u.positions.Reset()
	u.ResetState()
	return nil
}

func (u *UnionAll) TupleDesc() *tuple.TupleDescription { return u.children[0].TupleDesc() }

func (u *UnionAll) IsScrollable() bool {
	return u.children[0].IsScrollable() && u.children[1].IsScrollable()
}

func (u *UnionAll) current() iterator.RowSource { return u.children[u.side] }

func (u *UnionAll) BeforeFirst() error {
	u.side = 0
	if err := u.children[0].BeforeFirst(); err != nil {
		return err
	}
	u.MovedBeforeFirst()
	return nil
}

func (u *UnionAll) AfterLast() error {
	if u.Count() < 0 || !u.IsScrollable() {
		return iterator.DrainForward(u)
	}
	u.side = 1
	if err := u.children[1].AfterLast(); err != nil {
		return err
	}
	u.MovedAfterLast(-1)
	return nil
}

func (u *UnionAll) Next() (bool, error) {
	for {
		ok, err := u.current().Next()
		if err != nil {
			return false, err
		}
		if ok || u.side == 1 {
			return u.MovedNext(ok), nil
		}
		u.side = 1
		if err := u.children[1].BeforeFirst(); err != nil {
			return false, err
		}
	}
}

func (u *UnionAll) Previous() (bool, error) {
	if !u.IsScrollable() {
		return false, iterator.ErrForwardOnly("Previous")
	}
	for {
		ok, err := u.current().Previous()
		if err != nil {
			return false, err
		}
		if ok || u.side == 0 {
			return u.MovedPrevious(ok), nil
		}
		u.side = 0
		if err := u.children[0].AfterLast(); err != nil {
			return false, err
		}
	}
}

func (u *UnionAll) First() (bool, error)         { return iterator.MoveFirst(u) }
func (u *UnionAll) Last() (bool, error)          { return iterator.MoveLast(u) }
func (u *UnionAll) Absolute(n int) (bool, error) { return iterator.MoveAbsolute(u, n) }
func (u *UnionAll) Relative(k int) (bool, error) { return iterator.MoveRelative(u, k) }

func (u *UnionAll) IsLast() (bool, error) {
	if !u.IsScrollable() {
		return false, iterator.ErrForwardOnly("IsLast")
	}
	return iterator.ProbeIsLast(u)
}

func (u *UnionAll) RowPosition() (int64, error) {
	if err := u.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	pos, err := u.current().RowPosition()
	if err != nil {
		return 0, err
	}
	return u.positions.Put(unionPos{row: u.Row(), side: u.side, pos: pos}), nil
}

func (u *UnionAll) SetRowPosition(pos int64) error {
	p, ok := u.positions.Get(pos)
	if !ok {
		return dberror.InvalidArgument("row position %d was not handed out by this result", pos)
	}
	if err := u.children[p.side].SetRowPosition(p.pos); err != nil {
		return err
	}
	u.side = p.side
	u.MovedTo(p.row)
	return nil
}

func (u *UnionAll) RowInserted() bool { return u.OnRow() && u.current().RowInserted() }
func (u *UnionAll) RowDeleted() bool  { return u.OnRow() && u.current().RowDeleted() }

func (u *UnionAll) Field(i int) (types.Field, error) {
	if err := u.RequireRow("Field"); err != nil {
		return nil, err
	}
	if u.IsNulled() {
		return nil, nil
	}
	return u.current().Field(i)
}
