// Package aggregation implements grouped and aggregate queries.
package aggregation

import (
	"fmt"

	"cursordb/pkg/dberror"
	"cursordb/pkg/execution"
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/logging"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Query describes the grouped part of a SELECT.
type Query struct {
	GroupBy []expr.Expr
	Select  []expr.Expr
	Names   []string // output column names, optional
	Having  expr.Expr
	OrderBy []expr.Expr
}

// GroupResult evaluates a grouped query. Its rows are materialized; it is
// scrollable and never writable.
//
// Construction rewrites the SELECT, HAVING and ORDER BY trees: every
// grouping expression and every aggregate call is replaced by a reference
// to a slot of an internal row holding the group keys followed by the
// aggregate values. Expressions around an aggregate are kept and evaluated
// over the slots. A column that is neither grouped nor inside an aggregate
// is rejected with NOT_IN_GROUP_BY.
//
// Execute reads the input sorted on the grouping expressions and compares
// each row's keys with those of the current group: equal keys accumulate
// into that group, anything else starts a new one. With no GROUP BY the
// whole input is one group, so an empty input still yields one row.
type GroupResult struct {
	iterator.RowSource

	input   iterator.RowSource
	groupBy []expr.Expr
	aggs    []*expr.Aggregate
	slots   *execution.MemoryResult
}

type group struct {
	keys []types.Field
	accs []*expr.Accumulator
}

// NewGroupResult builds the grouped query q over child.
//
// Parameters:
//   - child: the rows to group
//   - q: grouping expressions, select list and the optional HAVING and
//     ORDER BY clauses, all written against the child's columns
//
// Returns:
//   - *GroupResult ready to be executed
//   - error if a column is used outside GROUP BY and aggregates, or the
//     query has neither grouping expressions nor aggregates
func NewGroupResult(child iterator.RowSource, q Query) (*GroupResult, error) {
	if child == nil {
		return nil, fmt.Errorf("child operator cannot be nil")
	}
	if len(q.Select) == 0 {
		return nil, dberror.InvalidArgument("grouped query needs a select list")
	}
	childTD := child.TupleDesc()
	all := append(append(append([]expr.Expr{}, q.GroupBy...), q.Select...), q.OrderBy...)
	if err := expr.BindAll(childTD, append(all, q.Having)...); err != nil {
		return nil, err
	}

	g := &GroupResult{groupBy: q.GroupBy}
	rewrite := func(e expr.Expr) (expr.Expr, error) { return expr.Transform(e, g.hoist) }

	sel := make([]expr.Expr, len(q.Select))
	for i, e := range q.Select {
		r, err := rewrite(e)
		if err != nil {
			return nil, err
		}
		sel[i] = r
	}
	having, err := rewrite(q.Having)
	if err != nil {
		return nil, err
	}
	order := make([]expr.Expr, len(q.OrderBy))
	for i, e := range q.OrderBy {
		if order[i], err = rewrite(e); err != nil {
			return nil, err
		}
	}

	slotTD, err := g.slotDesc()
	if err != nil {
		return nil, err
	}
	g.slots = execution.NewMemoryResult(slotTD, nil)

	var out iterator.RowSource = g.slots
	if having != nil {
		if out, err = execution.NewWhere(out, having); err != nil {
			return nil, err
		}
	}
	if len(order) > 0 {
		if out, err = execution.NewSortedResult(out, order); err != nil {
			return nil, err
		}
	}
	if g.RowSource, err = execution.NewProjection(out, sel, q.Names); err != nil {
		return nil, err
	}

	g.input = child
	if len(q.GroupBy) > 0 {
		if g.input, err = execution.NewSortedResult(child, q.GroupBy); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// sameExpr reports whether two bound expressions compute the same value.
func sameExpr(a, b expr.Expr) bool {
	ca, okA := a.(*expr.Column)
	cb, okB := b.(*expr.Column)
	if okA && okB {
		return ca.Index() == cb.Index()
	}
	return a.String() == b.String()
}

// hoist replaces grouping expressions and aggregates with slot references.
func (g *GroupResult) hoist(e expr.Expr) (expr.Expr, bool, error) {
	for i, k := range g.groupBy {
		if sameExpr(e, k) {
			return expr.ColumnAt(i, k.String(), k.ResultType()), true, nil
		}
	}
	switch n := e.(type) {
	case *expr.Aggregate:
		if expr.HasAggregate(n.Arg) {
			return nil, false, dberror.InvalidArgument("aggregate %s nests another aggregate", n)
		}
		slot := -1
		for i, a := range g.aggs {
			if a.String() == n.String() {
				slot = i
				break
			}
		}
		if slot < 0 {
			g.aggs = append(g.aggs, n)
			slot = len(g.aggs) - 1
		}
		return expr.ColumnAt(len(g.groupBy)+slot, n.String(), n.ResultType()), true, nil
	case *expr.Column:
		return nil, false, dberror.NotInGroupBy(n.String())
	}
	return e, false, nil
}

func (g *GroupResult) slotDesc() (*tuple.TupleDescription, error) {
	if len(g.groupBy) == 0 && len(g.aggs) == 0 {
		return nil, dberror.InvalidArgument("grouped query has neither GROUP BY nor aggregates")
	}
	cols := make([]tuple.Column, 0, len(g.groupBy)+len(g.aggs))
	for _, k := range g.groupBy {
		cols = append(cols, tuple.Column{Name: k.String(), Type: k.ResultType(), Nullable: true})
	}
	for _, a := range g.aggs {
		cols = append(cols, tuple.Column{Name: a.String(), Type: a.ResultType(), Nullable: true})
	}
	return tuple.NewTupleDesc(cols)
}

func (g *GroupResult) newGroup(keys []types.Field) *group {
	gr := &group{keys: keys, accs: make([]*expr.Accumulator, len(g.aggs))}
	for i, a := range g.aggs {
		gr.accs[i] = a.NewAccumulator()
	}
	return gr
}

// Execute groups the input and runs the output pipeline.
func (g *GroupResult) Execute() error {
	if err := g.input.Execute(); err != nil {
		return err
	}

	var groups []*group
	var cur *group
	inputRows := 0
	err := iterator.ForEach(g.input, func() (bool, error) {
		inputRows++
		keys, err := expr.EvalAll(g.input, g.groupBy)
		if err != nil {
			return false, err
		}
		if cur == nil || !keysEqual(cur.keys, keys) {
			cur = g.newGroup(keys)
			groups = append(groups, cur)
		}
		for _, acc := range cur.accs {
			if err := acc.Add(g.input); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if len(groups) == 0 && len(g.groupBy) == 0 {
		groups = append(groups, g.newGroup(nil))
	}

	rows := make([][]types.Field, len(groups))
	for i, gr := range groups {
		row := make([]types.Field, 0, len(gr.keys)+len(gr.accs))
		row = append(row, gr.keys...)
		for _, acc := range gr.accs {
			row = append(row, acc.Result())
		}
		rows[i] = row
	}
	g.slots.SetRows(rows)
	logging.Debug("groups built", "input_rows", inputRows, "groups", len(groups))

	return g.RowSource.Execute()
}

func keysEqual(a, b []types.Field) bool {
	for i := range a {
		if !types.FieldsEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
