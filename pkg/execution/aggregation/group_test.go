package aggregation

import (
	"errors"
	"fmt"
	"testing"

	"cursordb/pkg/dberror"
	"cursordb/pkg/execution"
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/primitives"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

func sales(t *testing.T, rows ...[2]int64) *execution.MemoryResult {
	t.Helper()
	td, err := tuple.NewTupleDesc([]tuple.Column{
		{Name: "region", Table: "sales", Type: types.IntType},
		{Name: "amount", Table: "sales", Type: types.IntType, Nullable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	data := make([][]types.Field, len(rows))
	for i, r := range rows {
		data[i] = []types.Field{types.NewIntField(r[0]), types.NewIntField(r[1])}
	}
	return execution.NewMemoryResult(td, data)
}

func collect(t *testing.T, src iterator.RowSource) []string {
	t.Helper()
	rows, err := execution.Collect(src)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprint(r)
	}
	return out
}

func TestCountStarOverEmptyInput(t *testing.T) {
	g, err := NewGroupResult(sales(t), Query{Select: []expr.Expr{expr.CountAll()}})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, g)
	if len(got) != 1 || got[0] != "[0]" {
		t.Errorf("got %v, want one row holding 0", got)
	}
}

func TestEmptyInputWithGroupByYieldsNoRows(t *testing.T) {
	g, err := NewGroupResult(sales(t), Query{
		GroupBy: []expr.Expr{expr.Col("", "region")},
		Select:  []expr.Expr{expr.Col("", "region"), expr.CountAll()},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := collect(t, g); len(got) != 0 {
		t.Errorf("got %v, want no rows", got)
	}
}

func TestGroupByWithAggregatesAndHaving(t *testing.T) {
	input := sales(t,
		[2]int64{2, 5}, [2]int64{1, 10}, [2]int64{2, 7}, [2]int64{3, 1}, [2]int64{1, 20},
	)
	g, err := NewGroupResult(input, Query{
		GroupBy: []expr.Expr{expr.Col("", "region")},
		Select: []expr.Expr{
			expr.Col("sales", "region"),
			expr.CountAll(),
			expr.Agg(expr.Sum, expr.Col("", "amount")),
			expr.Arithmetic(expr.Add, expr.Agg(expr.Max, expr.Col("", "amount")), expr.Int(1)),
		},
		Having:  expr.Compare(primitives.GreaterThan, expr.CountAll(), expr.Int(1)),
		OrderBy: []expr.Expr{expr.Descending(expr.Agg(expr.Sum, expr.Col("", "amount")))},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, g)
	want := []string{"[1 2 30 21]", "[2 2 12 8]"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if ok, _ := g.Last(); !ok {
		t.Fatal("grouped result should scroll")
	}
	if f, _ := g.Field(0); f.(*types.IntField).Value != 2 {
		t.Errorf("last group is region %v", f)
	}
}

func TestColumnOutsideGroupByRejected(t *testing.T) {
	_, err := NewGroupResult(sales(t), Query{
		GroupBy: []expr.Expr{expr.Col("", "region")},
		Select:  []expr.Expr{expr.Col("", "amount")},
	})
	if !errors.Is(err, dberror.ErrNotInGroupBy) {
		t.Errorf("got %v, want NOT_IN_GROUP_BY", err)
	}
}

func TestGroupResultIsReadOnly(t *testing.T) {
	g, err := NewGroupResult(sales(t, [2]int64{1, 1}), Query{Select: []expr.Expr{expr.CountAll()}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := iterator.AsWritable(g, "UpdateRow"); !errors.Is(err, dberror.ErrReadOnly) {
		t.Errorf("got %v, want READ_ONLY", err)
	}
}
