package expr

import (
	"cursordb/pkg/primitives"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Comparison compares two operands. A NULL operand yields NULL.
type Comparison struct {
	Op          primitives.Predicate
	Left, Right Expr
}

// Compare builds left op right.
func Compare(op primitives.Predicate, left, right Expr) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

// Equal builds left = right.
func Equal(left, right Expr) *Comparison {
	return Compare(primitives.Equals, left, right)
}

func (c *Comparison) Bind(td *tuple.TupleDescription) error {
	return BindAll(td, c.Left, c.Right)
}

func (c *Comparison) Eval(row Row) (types.Field, error) {
	l, err := c.Left.Eval(row)
	if err != nil {
		return nil, err
	}
	r, err := c.Right.Eval(row)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	cmp, err := types.CompareFields(l, r)
	if err != nil {
		return nil, err
	}
	return types.NewBoolField(c.Op.Holds(cmp)), nil
}

func (c *Comparison) ResultType() types.Type { return types.BoolType }

func (c *Comparison) String() string {
	return c.Left.String() + " " + c.Op.String() + " " + c.Right.String()
}

// And is the three-valued conjunction of its operands.
type And struct {
	Operands []Expr
}

// Conj joins the operands with AND, flattening nested conjunctions. A
// single operand is returned as is.
func Conj(operands ...Expr) Expr {
	var flat []Expr
	for _, op := range operands {
		if op == nil {
			continue
		}
		flat = append(flat, SplitAnd(op)...)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &And{Operands: flat}
}

func (a *And) Bind(td *tuple.TupleDescription) error { return BindAll(td, a.Operands...) }

func (a *And) Eval(row Row) (types.Field, error) {
	sawNull := false
	for _, op := range a.Operands {
		v, err := op.Eval(row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			sawNull = true
			continue
		}
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		if !b {
			return types.NewBoolField(false), nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return types.NewBoolField(true), nil
}

func (a *And) ResultType() types.Type { return types.BoolType }
func (a *And) String() string         { return joinOperands(a.Operands, " AND ") }

// Or is the three-valued disjunction of its operands.
type Or struct {
	Operands []Expr
}

func Disj(operands ...Expr) *Or { return &Or{Operands: operands} }

func (o *Or) Bind(td *tuple.TupleDescription) error { return BindAll(td, o.Operands...) }

func (o *Or) Eval(row Row) (types.Field, error) {
	sawNull := false
	for _, op := range o.Operands {
		v, err := op.Eval(row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			sawNull = true
			continue
		}
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return types.NewBoolField(true), nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return types.NewBoolField(false), nil
}

func (o *Or) ResultType() types.Type { return types.BoolType }
func (o *Or) String() string         { return joinOperands(o.Operands, " OR ") }

// Not negates its operand; NOT NULL is NULL.
type Not struct {
	Operand Expr
}

func (n *Not) Bind(td *tuple.TupleDescription) error { return n.Operand.Bind(td) }

func (n *Not) Eval(row Row) (types.Field, error) {
	v, err := n.Operand.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	b, err := toBool(v)
	if err != nil {
		return nil, err
	}
	return types.NewBoolField(!b), nil
}

func (n *Not) ResultType() types.Type { return types.BoolType }
func (n *Not) String() string         { return "NOT (" + n.Operand.String() + ")" }

// IsNullExpr tests its operand for NULL. It never yields NULL itself.
type IsNullExpr struct {
	Operand Expr
}

func (n *IsNullExpr) Bind(td *tuple.TupleDescription) error { return n.Operand.Bind(td) }

func (n *IsNullExpr) Eval(row Row) (types.Field, error) {
	v, err := n.Operand.Eval(row)
	if err != nil {
		return nil, err
	}
	return types.NewBoolField(v == nil), nil
}

func (n *IsNullExpr) ResultType() types.Type { return types.BoolType }
func (n *IsNullExpr) String() string         { return n.Operand.String() + " IS NULL" }

func joinOperands(ops []Expr, sep string) string {
	s := "("
	for i, op := range ops {
		if i > 0 {
			s += sep
		}
		s += op.String()
	}
	return s + ")"
}

// SplitAnd returns the conjuncts of e. A non-conjunction is its own single
// conjunct.
func SplitAnd(e Expr) []Expr {
	a, ok := e.(*And)
	if !ok {
		return []Expr{e}
	}
	var out []Expr
	for _, op := range a.Operands {
		out = append(out, SplitAnd(op)...)
	}
	return out
}
