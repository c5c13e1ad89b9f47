// Package join implements the join operators: a nested-loop join for every
// join kind and an index-assisted equi-join used for eligible INNER joins.
// Both combine the columns of the left child followed by those of the right
// child and are forward-only; callers that need to scroll wrap them in an
// execution.ScrollableAdapter.
package join

import (
	"fmt"

	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Kind is the type of a join.
type Kind int

const (
	Cross Kind = iota
	Inner
	Left
	Right
	Full
)

func (k Kind) String() string {
	switch k {
	case Cross:
		return "CROSS"
	case Inner:
		return "INNER"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	case Full:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

// pair holds what both join operators share: the two children, the
// combined schema and the NULL sides of the current row.
type pair struct {
	iterator.CursorState
	left, right iterator.RowSource
	td          *tuple.TupleDescription
	nLeft       int
	leftNull    bool
	rightNull   bool
}

func newPair(left, right iterator.RowSource) (pair, error) {
	if left == nil || right == nil {
		return pair{}, fmt.Errorf("join children cannot be nil")
	}
	return pair{
		CursorState: iterator.NewCursorState(),
		left:        left,
		right:       right,
		td:          tuple.Combine(left.TupleDesc(), right.TupleDesc()),
		nLeft:       left.TupleDesc().NumFields(),
	}, nil
}

func (p *pair) TupleDesc() *tuple.TupleDescription { return p.td }

// IsScrollable is false: joins only move forward.
func (p *pair) IsScrollable() bool { return false }

func (p *pair) Previous() (bool, error) { return false, iterator.ErrForwardOnly("Previous") }
func (p *pair) Last() (bool, error)     { return false, iterator.ErrForwardOnly("Last") }
func (p *pair) IsLast() (bool, error)   { return false, iterator.ErrForwardOnly("IsLast") }

func (p *pair) Field(i int) (types.Field, error) {
	if err := p.RequireRow("Field"); err != nil {
		return nil, err
	}
	if p.IsNulled() {
		return nil, nil
	}
	return p.field(i)
}

// field reads column i of the combined row regardless of cursor state. The
// join condition is evaluated through it before the row is emitted.
func (p *pair) field(i int) (types.Field, error) {
	if i < 0 || i >= p.td.NumFields() {
		return nil, dberror.InvalidArgument("column index %d out of bounds [0, %d)", i, p.td.NumFields())
	}
	if i < p.nLeft {
		if p.leftNull {
			return nil, nil
		}
		return p.left.Field(i)
	}
	if p.rightNull {
		return nil, nil
	}
	return p.right.Field(i - p.nLeft)
}

// candidate is the row under evaluation.
type candidate struct{ p *pair }

func (c candidate) Field(i int) (types.Field, error) { return c.p.field(i) }

func (p *pair) RowInserted() bool {
	if !p.OnRow() {
		return false
	}
	return (!p.leftNull && p.left.RowInserted()) || (!p.rightNull && p.right.RowInserted())
}

func (p *pair) RowDeleted() bool {
	if !p.OnRow() {
		return false
	}
	return (!p.leftNull && p.left.RowDeleted()) || (!p.rightNull && p.right.RowDeleted())
}

// childPosition returns the position of a child, or -1 for a NULL side.
func childPosition(src iterator.RowSource, null bool) (int64, error) {
	if null {
		return -1, nil
	}
	return src.RowPosition()
}

// restoreChild moves a child back to pos, or to no-current-row for -1.
func restoreChild(src iterator.RowSource, pos int64) error {
	if pos < 0 {
		src.NoRow()
		return nil
	}
	return src.SetRowPosition(pos)
}

func afterLast(src iterator.RowSource) error {
	return iterator.DrainForward(src)
}

func absolute(src iterator.RowSource, n int) (bool, error) {
	if n < 0 {
		return false, iterator.ErrForwardOnly("Absolute")
	}
	return iterator.MoveAbsolute(src, n)
}

func relative(src iterator.RowSource, k int) (bool, error) {
	if k < 0 {
		return false, iterator.ErrForwardOnly("Relative")
	}
	return iterator.MoveRelative(src, k)
}
