package expr

import (
	"cursordb/pkg/dberror"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// ArithOp is a binary arithmetic operator.
type ArithOp byte

const (
	Add ArithOp = '+'
	Sub ArithOp = '-'
	Mul ArithOp = '*'
	Div ArithOp = '/'
)

// Arith applies an arithmetic operator. INT op INT stays INT, any FLOAT
// operand makes the result FLOAT, and + on two strings concatenates.
type Arith struct {
	Op          ArithOp
	Left, Right Expr
}

func Arithmetic(op ArithOp, left, right Expr) *Arith {
	return &Arith{Op: op, Left: left, Right: right}
}

func (a *Arith) Bind(td *tuple.TupleDescription) error { return BindAll(td, a.Left, a.Right) }

func (a *Arith) ResultType() types.Type {
	lt, rt := a.Left.ResultType(), a.Right.ResultType()
	switch {
	case lt == types.StringType && rt == types.StringType:
		return types.StringType
	case lt == types.IntType && rt == types.IntType:
		return types.IntType
	default:
		return types.FloatType
	}
}

func (a *Arith) Eval(row Row) (types.Field, error) {
	l, err := a.Left.Eval(row)
	if err != nil {
		return nil, err
	}
	r, err := a.Right.Eval(row)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}

	if ls, ok := l.(*types.StringField); ok && a.Op == Add {
		rs, ok := r.(*types.StringField)
		if !ok {
			return nil, dberror.Conversion(r.String(), types.StringType.String())
		}
		return types.NewStringField(ls.Value + rs.Value), nil
	}

	li, lInt := l.(*types.IntField)
	ri, rInt := r.(*types.IntField)
	if lInt && rInt {
		return arithInt(a.Op, li.Value, ri.Value)
	}

	lf, err := toFloat(l)
	if err != nil {
		return nil, err
	}
	rf, err := toFloat(r)
	if err != nil {
		return nil, err
	}
	switch a.Op {
	case Add:
		return types.NewFloatField(lf + rf), nil
	case Sub:
		return types.NewFloatField(lf - rf), nil
	case Mul:
		return types.NewFloatField(lf * rf), nil
	default:
		if rf == 0 {
			return nil, dberror.InvalidArgument("division by zero")
		}
		return types.NewFloatField(lf / rf), nil
	}
}

func arithInt(op ArithOp, l, r int64) (types.Field, error) {
	switch op {
	case Add:
		return types.NewIntField(l + r), nil
	case Sub:
		return types.NewIntField(l - r), nil
	case Mul:
		return types.NewIntField(l * r), nil
	default:
		if r == 0 {
			return nil, dberror.InvalidArgument("division by zero")
		}
		return types.NewIntField(l / r), nil
	}
}

func (a *Arith) String() string {
	return "(" + a.Left.String() + " " + string(a.Op) + " " + a.Right.String() + ")"
}
