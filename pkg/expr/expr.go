// Package expr holds the expression trees evaluated by the execution
// operators: column references, literals, comparisons, boolean connectives,
// arithmetic, aggregates and a few special forms.
//
// An expression is bound once against the schema of the rows it will see,
// then evaluated against the current row of a cursor. NULL is a nil Field.
package expr

import (
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Row is the current row an expression is evaluated against. Every
// iterator.RowSource satisfies it.
type Row interface {
	Field(i int) (types.Field, error)
}

// Expr is a node of an expression tree.
type Expr interface {
	// Bind resolves column references against td.
	Bind(td *tuple.TupleDescription) error

	// Eval computes the value for the current row.
	Eval(row Row) (types.Field, error)

	// ResultType is the type of the values Eval produces. It is only
	// meaningful after Bind.
	ResultType() types.Type

	String() string
}

// BindAll binds every expression against td.
func BindAll(td *tuple.TupleDescription, exprs ...Expr) error {
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if err := e.Bind(td); err != nil {
			return err
		}
	}
	return nil
}

// EvalAll evaluates every expression against row.
func EvalAll(row Row, exprs []Expr) ([]types.Field, error) {
	out := make([]types.Field, len(exprs))
	for i, e := range exprs {
		v, err := e.Eval(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
