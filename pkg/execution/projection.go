package execution

import (
	"fmt"

	"cursordb/pkg/dberror"
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Projection computes a list of expressions over each row of its child.
// It produces exactly one row per child row, so navigation, positions and
// row numbers are the child's.
//
// A projection is writable when its child is: inserted and updated values
// are routed to the child columns that plain column references point at.
type Projection struct {
	passthrough
	exprs []expr.Expr
	td    *tuple.TupleDescription
}

// NewProjection binds exprs against the child's schema. names gives the
// output column names; a nil or short slice derives the rest from the
// expressions.
func NewProjection(child iterator.RowSource, exprs []expr.Expr, names []string) (*Projection, error) {
	if child == nil {
		return nil, fmt.Errorf("child operator cannot be nil")
	}
	if len(exprs) == 0 {
		return nil, dberror.InvalidArgument("projection needs at least one expression")
	}
	if err := expr.BindAll(child.TupleDesc(), exprs...); err != nil {
		return nil, err
	}

	childTD := child.TupleDesc()
	cols := make([]tuple.Column, len(exprs))
	for i, e := range exprs {
		col := tuple.Column{Name: e.String(), Type: e.ResultType(), Nullable: true}
		if c, ok := e.(*expr.Column); ok && c.Index() >= 0 && c.Index() < childTD.NumFields() {
			col = childTD.Columns[c.Index()]
		}
		if i < len(names) && names[i] != "" {
			col.Name, col.Table = names[i], ""
		}
		cols[i] = col
	}
	td, err := tuple.NewTupleDesc(cols)
	if err != nil {
		return nil, err
	}
	return &Projection{passthrough: passthrough{child: child}, exprs: exprs, td: td}, nil
}

func (p *Projection) TupleDesc() *tuple.TupleDescription { return p.td }

// Expressions returns the projected expressions.
func (p *Projection) Expressions() []expr.Expr { return p.exprs }

func (p *Projection) Field(i int) (types.Field, error) {
	if i < 0 || i >= len(p.exprs) {
		return nil, dberror.InvalidArgument("column index %d out of bounds [0, %d)", i, len(p.exprs))
	}
	if p.child.Row() == 0 {
		return nil, dberror.NoCurrentRow("Field")
	}
	if p.nulled {
		return nil, nil
	}
	return p.exprs[i].Eval(p.child)
}

// childColumn maps output column i to the child column it reads, or -1
// when the column is computed.
func (p *Projection) childColumn(i int) int {
	if c, ok := p.exprs[i].(*expr.Column); ok {
		return c.Index()
	}
	return -1
}

func (p *Projection) InsertRow(values []types.Field) (int64, error) {
	w, err := p.writable("InsertRow")
	if err != nil {
		return 0, err
	}
	if len(values) != len(p.exprs) {
		return 0, dberror.InvalidArgument("insert has %d values for %d columns", len(values), len(p.exprs))
	}
	row := make([]types.Field, p.child.TupleDesc().NumFields())
	for i, v := range values {
		ci := p.childColumn(i)
		if ci < 0 {
			return 0, dberror.ReadOnly(fmt.Sprintf("InsertRow into computed column %s", p.td.Columns[i].Name))
		}
		row[ci] = v
	}
	return w.InsertRow(row)
}

func (p *Projection) UpdateRow(values map[int]types.Field) error {
	w, err := p.writable("UpdateRow")
	if err != nil {
		return err
	}
	mapped := make(map[int]types.Field, len(values))
	for i, v := range values {
		if i < 0 || i >= len(p.exprs) {
			return dberror.InvalidArgument("column index %d out of bounds [0, %d)", i, len(p.exprs))
		}
		ci := p.childColumn(i)
		if ci < 0 {
			return dberror.ReadOnly(fmt.Sprintf("UpdateRow of computed column %s", p.td.Columns[i].Name))
		}
		mapped[ci] = v
	}
	return w.UpdateRow(mapped)
}

func (p *Projection) DeleteRow() error {
	w, err := p.writable("DeleteRow")
	if err != nil {
		return err
	}
	return w.DeleteRow()
}
