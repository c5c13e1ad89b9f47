package join

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"cursordb/pkg/execution"
	"cursordb/pkg/expr"
	"cursordb/pkg/iterator"
	"cursordb/pkg/primitives"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

func source(t *testing.T, table string, cols []string, rows ...[]any) *execution.MemoryResult {
	t.Helper()
	tcs := make([]tuple.Column, len(cols))
	for i, c := range cols {
		tcs[i] = tuple.Column{Name: c, Table: table, Type: types.IntType, Nullable: true}
	}
	td, err := tuple.NewTupleDesc(tcs)
	if err != nil {
		t.Fatal(err)
	}
	data := make([][]types.Field, len(rows))
	for i, r := range rows {
		data[i] = make([]types.Field, len(r))
		for j, v := range r {
			if v != nil {
				data[i][j] = types.NewIntField(int64(v.(int)))
			}
		}
	}
	return execution.NewMemoryResult(td, data)
}

// render formats each row as "a,b,..." with NULL spelled out.
func render(t *testing.T, src iterator.RowSource) []string {
	t.Helper()
	rows, err := execution.Collect(src)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		s := ""
		for j, f := range r {
			if j > 0 {
				s += ","
			}
			if f == nil {
				s += "NULL"
			} else {
				s += f.String()
			}
		}
		out[i] = s
	}
	return out
}

func sorted(rows []string) []string {
	out := append([]string(nil), rows...)
	sort.Strings(out)
	return out
}

func eq(l, r string) expr.Expr {
	return expr.Equal(expr.Col("l", l), expr.Col("r", r))
}

func TestJoinKinds(t *testing.T) {
	left := func() iterator.RowSource {
		return source(t, "l", []string{"id", "v"}, []any{1, 10}, []any{2, 20}, []any{3, 30})
	}
	right := func() iterator.RowSource {
		return source(t, "r", []string{"id", "w"}, []any{2, 200}, []any{3, 300}, []any{3, 301}, []any{4, 400})
	}

	tests := []struct {
		kind Kind
		want []string
	}{
		{Inner, []string{"2,20,2,200", "3,30,3,300", "3,30,3,301"}},
		{Left, []string{"1,10,NULL,NULL", "2,20,2,200", "3,30,3,300", "3,30,3,301"}},
		{Right, []string{"2,20,2,200", "3,30,3,300", "3,30,3,301", "NULL,NULL,4,400"}},
		{Full, []string{"1,10,NULL,NULL", "2,20,2,200", "3,30,3,300", "3,30,3,301", "NULL,NULL,4,400"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			j, err := NewNestedLoopJoin(tt.kind, left(), right(), eq("id", "id"))
			if err != nil {
				t.Fatal(err)
			}
			got := render(t, j)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("got %v\nwant %v", got, tt.want)
			}
		})
	}
}

func TestCrossJoin(t *testing.T) {
	l := source(t, "l", []string{"a"}, []any{1}, []any{2})
	r := source(t, "r", []string{"b"}, []any{7}, []any{8}, []any{9})
	j, err := NewNestedLoopJoin(Cross, l, r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := render(t, j); len(got) != 6 || got[0] != "1,7" || got[5] != "2,9" {
		t.Errorf("got %v", got)
	}
}

func TestFullJoinWithoutMatchesYieldsBothSides(t *testing.T) {
	for _, sizes := range [][2]int{{3, 2}, {0, 4}, {2, 0}, {0, 0}} {
		t.Run(fmt.Sprintf("L%d_R%d", sizes[0], sizes[1]), func(t *testing.T) {
			var lrows, rrows [][]any
			for i := 0; i < sizes[0]; i++ {
				lrows = append(lrows, []any{i})
			}
			for i := 0; i < sizes[1]; i++ {
				rrows = append(rrows, []any{100 + i})
			}
			l := source(t, "l", []string{"id"}, lrows...)
			r := source(t, "r", []string{"id"}, rrows...)
			j, err := NewNestedLoopJoin(Full, l, r, eq("id", "id"))
			if err != nil {
				t.Fatal(err)
			}
			got := render(t, j)
			if len(got) != sizes[0]+sizes[1] {
				t.Fatalf("got %d rows %v, want %d", len(got), got, sizes[0]+sizes[1])
			}
			for _, row := range got {
				sides := strings.Split(row, ",")
				if (sides[0] == "NULL") == (sides[1] == "NULL") {
					t.Errorf("row %q should have exactly one NULL side", row)
				}
			}
		})
	}
}

func TestIndexJoinMatchesNestedLoop(t *testing.T) {
	mk := func() (iterator.RowSource, iterator.RowSource) {
		l := source(t, "l", []string{"a", "b"},
			[]any{1, 1}, []any{1, 2}, []any{2, 1}, []any{nil, 1}, []any{3, 3}, []any{1, 1})
		r := source(t, "r", []string{"a", "b", "c"},
			[]any{1, 1, 100}, []any{1, 1, 101}, []any{2, 1, 102}, []any{nil, 1, 103}, []any{3, 4, 104})
		return l, r
	}
	cond := func() expr.Expr {
		return expr.Conj(eq("a", "a"), expr.Equal(expr.Col("r", "b"), expr.Col("l", "b")))
	}

	l, r := mk()
	fast, err := Planner{}.Join(Inner, l, r, cond())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fast.(*IndexJoin); !ok {
		t.Fatalf("planner chose %T, want *IndexJoin", fast)
	}

	l, r = mk()
	slow, err := Planner{ForceNestedLoop: true}.Join(Inner, l, r, cond())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := slow.(*NestedLoopJoin); !ok {
		t.Fatalf("forced planner chose %T", slow)
	}

	got, want := sorted(render(t, fast)), sorted(render(t, slow))
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("index join %v\nnested loop %v", got, want)
	}
	if len(got) != 5 {
		t.Errorf("got %d rows, want 5", len(got))
	}
}

func TestPlannerFallsBack(t *testing.T) {
	l := source(t, "l", []string{"a"}, []any{1})
	r := source(t, "r", []string{"a"}, []any{1})
	tests := []struct {
		name string
		kind Kind
		cond expr.Expr
	}{
		{"left join", Left, eq("a", "a")},
		{"inequality", Inner, expr.Compare(primitives.LessThan, expr.Col("l", "a"), expr.Col("r", "a"))},
		{"one-sided equality", Inner, expr.Equal(expr.Col("l", "a"), expr.Int(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := Planner{}.Join(tt.kind, l, r, tt.cond)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := j.(*NestedLoopJoin); !ok {
				t.Errorf("got %T, want *NestedLoopJoin", j)
			}
		})
	}
}

func TestJoinPositionsAndAdapter(t *testing.T) {
	l := source(t, "l", []string{"id"}, []any{1}, []any{2})
	r := source(t, "r", []string{"id"}, []any{2}, []any{3})
	j, err := NewNestedLoopJoin(Full, l, r, eq("id", "id"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Previous(); err == nil {
		t.Error("join should be forward only")
	}

	a, err := execution.NewScrollableAdapter(j)
	if err != nil {
		t.Fatal(err)
	}
	forward := render(t, a)
	if len(forward) != 3 {
		t.Fatalf("got %v", forward)
	}

	var backward []string
	a.AfterLast()
	for {
		ok, err := a.Previous()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		lv, _ := a.Field(0)
		rv, _ := a.Field(1)
		backward = append([]string{fmt.Sprint(lv, ",", rv)}, backward...)
	}
	if len(backward) != 3 {
		t.Fatalf("backward walk saw %d rows", len(backward))
	}
	if backward[2] != "<nil>,3" {
		t.Errorf("last row replayed as %q", backward[2])
	}
}
