package expr

import (
	"strings"

	"cursordb/pkg/dberror"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// AggFunc identifies an aggregate function.
type AggFunc int

const (
	Count AggFunc = iota
	Sum
	Min
	Max
	First
	Last
	Avg
)

func (f AggFunc) String() string {
	switch f {
	case Count:
		return "COUNT"
	case Sum:
		return "SUM"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case First:
		return "FIRST"
	case Last:
		return "LAST"
	case Avg:
		return "AVG"
	default:
		return "UNKNOWN"
	}
}

// ParseAggFunc maps a function name to its AggFunc.
func ParseAggFunc(name string) (AggFunc, bool) {
	for f := Count; f <= Avg; f++ {
		if strings.EqualFold(f.String(), name) {
			return f, true
		}
	}
	return 0, false
}

// Aggregate is an aggregate function call. A nil Arg is COUNT(*).
//
// Aggregates cannot be evaluated row by row; the grouping operator replaces
// them with references to its materialized columns and feeds each group's
// rows into an Accumulator instead.
type Aggregate struct {
	Func AggFunc
	Arg  Expr
}

// Agg builds fn(arg).
func Agg(fn AggFunc, arg Expr) *Aggregate { return &Aggregate{Func: fn, Arg: arg} }

// CountAll builds COUNT(*).
func CountAll() *Aggregate { return &Aggregate{Func: Count} }

func (a *Aggregate) Bind(td *tuple.TupleDescription) error {
	if a.Arg == nil {
		return nil
	}
	return a.Arg.Bind(td)
}

func (a *Aggregate) Eval(Row) (types.Field, error) {
	return nil, dberror.InvalidArgument("aggregate %s used outside of a grouped query", a)
}

func (a *Aggregate) ResultType() types.Type {
	switch a.Func {
	case Count:
		return types.IntType
	case Avg:
		return types.FloatType
	case Sum:
		if a.Arg.ResultType() == types.IntType {
			return types.IntType
		}
		return types.FloatType
	default:
		return a.Arg.ResultType()
	}
}

func (a *Aggregate) String() string {
	if a.Arg == nil {
		return a.Func.String() + "(*)"
	}
	return a.Func.String() + "(" + a.Arg.String() + ")"
}

// Accumulator folds the rows of one group into an aggregate value.
type Accumulator struct {
	agg     *Aggregate
	rows    int64
	count   int64
	sumInt  int64
	sumF    float64
	isFloat bool
	value   types.Field
}

// NewAccumulator returns an empty accumulator for a.
func (a *Aggregate) NewAccumulator() *Accumulator {
	return &Accumulator{agg: a}
}

// Add folds the current row into the accumulator.
func (acc *Accumulator) Add(row Row) error {
	acc.rows++
	if acc.agg.Arg == nil {
		return nil
	}
	v, err := acc.agg.Arg.Eval(row)
	if err != nil {
		return err
	}

	switch acc.agg.Func {
	case First:
		if acc.rows == 1 {
			acc.value = v
		}
		return nil
	case Last:
		acc.value = v
		return nil
	}

	if v == nil {
		return nil
	}
	acc.count++

	switch acc.agg.Func {
	case Sum, Avg:
		switch f := v.(type) {
		case *types.IntField:
			acc.sumInt += f.Value
			acc.sumF += float64(f.Value)
		default:
			x, err := toFloat(v)
			if err != nil {
				return err
			}
			acc.isFloat = true
			acc.sumF += x
		}
	case Min, Max:
		if acc.value == nil {
			acc.value = v
			return nil
		}
		c, err := types.CompareFields(v, acc.value)
		if err != nil {
			return err
		}
		if (acc.agg.Func == Min && c < 0) || (acc.agg.Func == Max && c > 0) {
			acc.value = v
		}
	}
	return nil
}

// Result returns the aggregate value of the rows added so far.
func (acc *Accumulator) Result() types.Field {
	switch acc.agg.Func {
	case Count:
		if acc.agg.Arg == nil {
			return types.NewIntField(acc.rows)
		}
		return types.NewIntField(acc.count)
	case Sum:
		if acc.count == 0 {
			return nil
		}
		if acc.isFloat || acc.agg.ResultType() == types.FloatType {
			return types.NewFloatField(acc.sumF)
		}
		return types.NewIntField(acc.sumInt)
	case Avg:
		if acc.count == 0 {
			return nil
		}
		return types.NewFloatField(acc.sumF / float64(acc.count))
	default:
		return acc.value
	}
}
