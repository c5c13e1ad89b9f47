package expr

import (
	"fmt"

	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Column references a column of the input row by name, or by index once
// bound.
type Column struct {
	Table string
	Name  string

	index int
	typ   types.Type
	bound bool
	fixed bool // built by ColumnAt; Bind leaves it alone
}

// Col returns an unbound reference to table.name. table may be empty.
func Col(table, name string) *Column {
	return &Column{Table: table, Name: name, index: -1}
}

// ColumnAt returns a reference permanently bound to index i.
func ColumnAt(i int, name string, t types.Type) *Column {
	return &Column{Name: name, index: i, typ: t, bound: true, fixed: true}
}

func (c *Column) Bind(td *tuple.TupleDescription) error {
	if c.fixed {
		return nil
	}
	i, err := td.FindColumn(c.Table, c.Name)
	if err != nil {
		return err
	}
	c.index, c.typ, c.bound = i, td.Columns[i].Type, true
	return nil
}

// Index returns the bound column index, or -1.
func (c *Column) Index() int {
	if !c.bound {
		return -1
	}
	return c.index
}

func (c *Column) Eval(row Row) (types.Field, error) {
	if !c.bound {
		return nil, fmt.Errorf("column %s evaluated before binding", c)
	}
	return row.Field(c.index)
}

func (c *Column) ResultType() types.Type { return c.typ }

func (c *Column) String() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// Literal is a constant value.
type Literal struct {
	Value types.Field
	Type  types.Type
}

// Lit wraps a value. A nil value is an untyped NULL.
func Lit(v types.Field) *Literal {
	l := &Literal{Value: v}
	if v != nil {
		l.Type = v.Type()
	}
	return l
}

// Int is shorthand for an INT literal.
func Int(v int64) *Literal { return Lit(types.NewIntField(v)) }

// Str is shorthand for a VARCHAR literal.
func Str(v string) *Literal { return Lit(types.NewStringField(v)) }

func (l *Literal) Bind(*tuple.TupleDescription) error { return nil }
func (l *Literal) Eval(Row) (types.Field, error)      { return l.Value, nil }
func (l *Literal) ResultType() types.Type             { return l.Type }

func (l *Literal) String() string {
	if l.Value == nil {
		return "NULL"
	}
	if l.Type == types.StringType {
		return "'" + l.Value.String() + "'"
	}
	return l.Value.String()
}
