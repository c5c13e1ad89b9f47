package database

import (
	"slices"

	"cursordb/pkg/dberror"
	"cursordb/pkg/execution"
	"cursordb/pkg/execution/aggregation"
	"cursordb/pkg/execution/join"
	"cursordb/pkg/execution/setops"
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/table"
)

// Source is the FROM part of a query, or a whole query: something that
// opens into a row cursor in a connection's transaction.
type Source interface {
	open(c *Connection) (iterator.RowSource, error)
}

// TableRef reads a table or a view. Alias, when set, renames it for column
// references.
type TableRef struct {
	Name  string
	Alias string
}

func (r TableRef) open(c *Connection) (iterator.RowSource, error) {
	if v, ok := c.db.lookupView(r.Name); ok {
		src, err := v.query.open(c)
		if err != nil {
			return nil, err
		}
		name := v.name
		if r.Alias != "" {
			name = r.Alias
		}
		return execution.NewView(name, src, v.columns)
	}

	t, err := c.db.lookupTable(c.ID, r.Name)
	if err != nil {
		return nil, err
	}
	cur := table.NewCursor(t, c.ctx, c.isolation)
	if r.Alias == "" {
		return cur, nil
	}
	return execution.NewView(r.Alias, cur, nil)
}

// JoinRef joins two sources. On is written against the combined columns,
// left first; it must be nil for a CROSS join.
type JoinRef struct {
	Kind        join.Kind
	Left, Right Source
	On          expr.Expr
}

func (j JoinRef) open(c *Connection) (iterator.RowSource, error) {
	left, err := j.Left.open(c)
	if err != nil {
		return nil, err
	}
	right, err := openScrollable(c, j.Right)
	if err != nil {
		return nil, err
	}
	return c.planner.Join(j.Kind, left, right, j.On)
}

// UnionAll concatenates two queries with the same number of columns.
type UnionAll struct {
	First, Second Source
}

func (u UnionAll) open(c *Connection) (iterator.RowSource, error) {
	first, err := u.First.open(c)
	if err != nil {
		return nil, err
	}
	second, err := u.Second.open(c)
	if err != nil {
		return nil, err
	}
	return setops.NewUnionAll(first, second)
}

// Select is a query over a source. A nil Columns list selects every
// column. The query is grouped when GroupBy is set or a selected expression
// contains an aggregate.
type Select struct {
	From     Source
	Columns  []expr.Expr
	Names    []string
	Where    expr.Expr
	GroupBy  []expr.Expr
	Having   expr.Expr
	OrderBy  []expr.Expr
	Distinct bool
}

func (s Select) grouped() bool {
	return len(s.GroupBy) > 0 || slices.ContainsFunc(s.Columns, expr.HasAggregate)
}

func (s Select) open(c *Connection) (iterator.RowSource, error) {
	if s.From == nil {
		return nil, dberror.InvalidArgument("SELECT needs a FROM source")
	}
	src, err := s.From.open(c)
	if err != nil {
		return nil, err
	}
	if s.Where != nil {
		if src, err = execution.NewWhere(src, s.Where); err != nil {
			return nil, err
		}
	}

	switch {
	case s.grouped():
		if len(s.Columns) == 0 {
			return nil, dberror.InvalidArgument("grouped query needs a select list")
		}
		src, err = aggregation.NewGroupResult(src, aggregation.Query{
			GroupBy: s.GroupBy,
			Select:  s.Columns,
			Names:   s.Names,
			Having:  s.Having,
			OrderBy: s.OrderBy,
		})
		if err != nil {
			return nil, err
		}
	case s.Having != nil:
		return nil, dberror.InvalidArgument("HAVING needs GROUP BY or an aggregate")
	default:
		if len(s.OrderBy) > 0 {
			if src, err = execution.NewSortedResult(src, s.OrderBy); err != nil {
				return nil, err
			}
		}
		if len(s.Columns) > 0 {
			if src, err = execution.NewProjection(src, s.Columns, s.Names); err != nil {
				return nil, err
			}
		}
	}

	if s.Distinct {
		return setops.NewDistinct(src)
	}
	return src, nil
}

// openScrollable opens src and wraps it when it only moves forward.
func openScrollable(c *Connection, src Source) (iterator.RowSource, error) {
	s, err := src.open(c)
	if err != nil {
		return nil, err
	}
	return execution.Scrollable(s)
}
