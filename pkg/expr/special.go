package expr

import (
	"errors"
	"math/rand/v2"

	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/trie"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Desc marks an ORDER BY expression as descending. It evaluates to its
// operand.
type Desc struct {
	Expr
}

// Descending wraps e in a Desc marker.
func Descending(e Expr) *Desc { return &Desc{Expr: e} }

func (d *Desc) String() string { return d.Expr.String() + " DESC" }

// IsDescending reports whether e carries the Desc marker.
func IsDescending(e Expr) bool {
	_, ok := e.(*Desc)
	return ok
}

// Unwrap strips a Desc marker.
func Unwrap(e Expr) Expr {
	if d, ok := e.(*Desc); ok {
		return d.Expr
	}
	return e
}

// InIndex is "operand IN (subquery)" with the subquery materialized into a
// transient unique index over its first column.
type InIndex struct {
	Operand Expr
	index   *trie.Index
	hasNull bool
}

// NewInIndex runs sub to completion and indexes the values of its first
// column.
func NewInIndex(operand Expr, sub iterator.RowSource) (*InIndex, error) {
	if err := sub.Execute(); err != nil {
		return nil, err
	}
	in := &InIndex{Operand: operand}
	var keyTypes []types.Type
	if td := sub.TupleDesc(); td != nil && td.NumFields() > 0 {
		keyTypes = []types.Type{td.Columns[0].Type}
	}
	in.index = trie.NewIndex("in-subquery", true, 1, keyTypes)

	var n int64
	err := iterator.ForEach(sub, func() (bool, error) {
		v, err := sub.Field(0)
		if err != nil {
			return false, err
		}
		if v == nil {
			in.hasNull = true
			return true, nil
		}
		err = in.index.AddValues(n, []types.Field{v})
		if err != nil && !errors.Is(err, dberror.ErrDuplicateKey) {
			return false, err
		}
		n++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (in *InIndex) Bind(td *tuple.TupleDescription) error { return in.Operand.Bind(td) }

// Eval follows SQL: a match is TRUE; no match is FALSE, or NULL when the
// subquery produced a NULL or the operand is NULL.
func (in *InIndex) Eval(row Row) (types.Field, error) {
	v, err := in.Operand.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	rows, err := in.index.FindRows([]types.Field{v}, false)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return types.NewBoolField(true), nil
	}
	if in.hasNull {
		return nil, nil
	}
	return types.NewBoolField(false), nil
}

func (in *InIndex) ResultType() types.Type { return types.BoolType }
func (in *InIndex) String() string         { return in.Operand.String() + " IN (subquery)" }

// Source produces uniformly distributed floats in [0, 1).
type Source interface {
	Float64() float64
}

// Random is RAND(): a fresh value on every evaluation, drawn from the
// generator it was built with.
type Random struct {
	src Source
}

// NewRandom returns RAND() over src. A nil src seeds a generator from the
// runtime's random source.
func NewRandom(src Source) *Random {
	if src == nil {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Random{src: src}
}

func (r *Random) Bind(*tuple.TupleDescription) error { return nil }
func (r *Random) Eval(Row) (types.Field, error)      { return types.NewFloatField(r.src.Float64()), nil }
func (r *Random) ResultType() types.Type             { return types.FloatType }
func (r *Random) String() string                     { return "RAND()" }
