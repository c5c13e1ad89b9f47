package expr

import (
	"math"
	"strconv"

	"cursordb/pkg/dberror"
	"cursordb/pkg/types"
)

// The accessors below evaluate e against row and convert the result. NULL
// converts to the zero value; callers that care test IsNull first. A value
// that cannot be converted fails with a CONVERSION error.

// IsNull reports whether e is NULL for row.
func IsNull(e Expr, row Row) (bool, error) {
	v, err := e.Eval(row)
	return v == nil, err
}

// Value evaluates e.
func Value(e Expr, row Row) (types.Field, error) {
	return e.Eval(row)
}

// Bool evaluates e as a predicate.
func Bool(e Expr, row Row) (bool, error) {
	v, err := e.Eval(row)
	if err != nil || v == nil {
		return false, err
	}
	return toBool(v)
}

func Int64(e Expr, row Row) (int64, error) {
	v, err := e.Eval(row)
	if err != nil || v == nil {
		return 0, err
	}
	return toInt(v)
}

func Float64(e Expr, row Row) (float64, error) {
	v, err := e.Eval(row)
	if err != nil || v == nil {
		return 0, err
	}
	return toFloat(v)
}

func String(e Expr, row Row) (string, error) {
	v, err := e.Eval(row)
	if err != nil || v == nil {
		return "", err
	}
	return v.String(), nil
}

func Bytes(e Expr, row Row) ([]byte, error) {
	v, err := e.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	switch f := v.(type) {
	case *types.BytesField:
		return f.Value, nil
	case *types.StringField:
		return []byte(f.Value), nil
	}
	return nil, dberror.Conversion(v.String(), types.BytesType.String())
}

func toBool(v types.Field) (bool, error) {
	switch f := v.(type) {
	case *types.BoolField:
		return f.Value, nil
	case *types.IntField:
		return f.Value != 0, nil
	case *types.StringField:
		if b, err := strconv.ParseBool(f.Value); err == nil {
			return b, nil
		}
	}
	return false, dberror.Conversion(v.String(), types.BoolType.String())
}

func toInt(v types.Field) (int64, error) {
	switch f := v.(type) {
	case *types.IntField:
		return f.Value, nil
	case *types.FloatField:
		if f.Value >= math.MinInt64 && f.Value < math.MaxInt64 {
			return int64(math.Round(f.Value)), nil
		}
	case *types.BoolField:
		if f.Value {
			return 1, nil
		}
		return 0, nil
	case *types.StringField:
		if i, err := strconv.ParseInt(f.Value, 10, 64); err == nil {
			return i, nil
		}
	}
	return 0, dberror.Conversion(v.String(), types.IntType.String())
}

func toFloat(v types.Field) (float64, error) {
	switch f := v.(type) {
	case *types.FloatField:
		return f.Value, nil
	case *types.IntField:
		return float64(f.Value), nil
	case *types.StringField:
		if x, err := strconv.ParseFloat(f.Value, 64); err == nil {
			return x, nil
		}
	}
	return 0, dberror.Conversion(v.String(), types.FloatType.String())
}
