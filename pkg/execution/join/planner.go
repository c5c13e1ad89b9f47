package join

import (
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/logging"
	"cursordb/pkg/primitives"
)

// Planner picks the join algorithm. An INNER join whose condition is a
// conjunction of equalities, each comparing an expression over left columns
// with an expression over right columns, runs as an IndexJoin. Everything
// else runs as a NestedLoopJoin.
type Planner struct {
	// ForceNestedLoop disables the index-assisted join.
	ForceNestedLoop bool
}

// Join builds the operator for left kind JOIN right ON cond.
func (p Planner) Join(kind Kind, left, right iterator.RowSource, cond expr.Expr) (iterator.RowSource, error) {
	if kind == Inner && cond != nil && !p.ForceNestedLoop {
		leftKeys, rightKeys, ok, err := equiKeys(left, right, cond)
		if err != nil {
			return nil, err
		}
		if ok {
			logging.Debug("join planned", "algorithm", "index", "keys", len(leftKeys))
			return NewIndexJoin(left, right, leftKeys, rightKeys)
		}
	}
	logging.Debug("join planned", "algorithm", "nested-loop", "kind", kind)
	return NewNestedLoopJoin(kind, left, right, cond)
}

type side int

const (
	noSide side = iota
	leftSide
	rightSide
	bothSides
)

// sideOf reports which child the columns of a bound expression come from.
func sideOf(e expr.Expr, nLeft int) side {
	s := noSide
	for _, c := range expr.Columns(e) {
		cs := leftSide
		if c.Index() >= nLeft {
			cs = rightSide
		}
		if s == noSide {
			s = cs
		} else if s != cs {
			return bothSides
		}
	}
	return s
}

// equiKeys splits cond into per-child key lists when every conjunct is an
// equality between one left-only and one right-only expression. The keys
// are rebound to their own child's schema.
func equiKeys(left, right iterator.RowSource, cond expr.Expr) (leftKeys, rightKeys []expr.Expr, ok bool, err error) {
	p, err := newPair(left, right)
	if err != nil {
		return nil, nil, false, err
	}
	if err := cond.Bind(p.td); err != nil {
		return nil, nil, false, err
	}

	for _, c := range expr.SplitAnd(cond) {
		cmp, isCmp := c.(*expr.Comparison)
		if !isCmp || cmp.Op != primitives.Equals {
			return nil, nil, false, nil
		}
		ls, rs := sideOf(cmp.Left, p.nLeft), sideOf(cmp.Right, p.nLeft)
		switch {
		case ls == leftSide && rs == rightSide:
			leftKeys, rightKeys = append(leftKeys, cmp.Left), append(rightKeys, cmp.Right)
		case ls == rightSide && rs == leftSide:
			leftKeys, rightKeys = append(leftKeys, cmp.Right), append(rightKeys, cmp.Left)
		default:
			return nil, nil, false, nil
		}
	}

	if err := expr.BindAll(left.TupleDesc(), leftKeys...); err != nil {
		return nil, nil, false, nil
	}
	if err := expr.BindAll(right.TupleDesc(), rightKeys...); err != nil {
		return nil, nil, false, nil
	}
	return leftKeys, rightKeys, true, nil
}
