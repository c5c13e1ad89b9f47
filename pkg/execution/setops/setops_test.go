package setops

import (
	"fmt"
	"testing"

	"cursordb/pkg/execution"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

func values(t *testing.T, vals ...any) *execution.MemoryResult {
	t.Helper()
	td, err := tuple.NewTupleDesc([]tuple.Column{{Name: "v", Type: types.IntType, Nullable: true}})
	if err != nil {
		t.Fatal(err)
	}
	rows := make([][]types.Field, len(vals))
	for i, v := range vals {
		if v == nil {
			rows[i] = []types.Field{nil}
			continue
		}
		rows[i] = []types.Field{types.NewIntField(int64(v.(int)))}
	}
	return execution.NewMemoryResult(td, rows)
}

func flat(t *testing.T, rows [][]types.Field) string {
	t.Helper()
	out := make([]string, len(rows))
	for i, r := range rows {
		if r[0] == nil {
			out[i] = "NULL"
		} else {
			out[i] = r[0].String()
		}
	}
	return fmt.Sprint(out)
}

func TestDistinctBothDirections(t *testing.T) {
	d, err := NewDistinct(values(t, 3, 1, 3, nil, 1, nil, 2))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := execution.Collect(d)
	if err != nil {
		t.Fatal(err)
	}
	if got := flat(t, rows); got != "[3 1 NULL 2]" {
		t.Errorf("forward: got %s", got)
	}

	var back []string
	d.AfterLast()
	for {
		ok, err := d.Previous()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		f, _ := d.Field(0)
		if f == nil {
			back = append(back, "NULL")
		} else {
			back = append(back, f.String())
		}
	}
	if fmt.Sprint(back) != "[2 NULL 1 3]" {
		t.Errorf("backward: got %v", back)
	}
}

func TestDistinctAfterLastFromFreshExecute(t *testing.T) {
	d, _ := NewDistinct(values(t, 1, 1, 2))
	if err := d.Execute(); err != nil {
		t.Fatal(err)
	}
	if ok, _ := d.Last(); !ok || d.Row() != 2 {
		t.Errorf("Last: row %d, want 2", d.Row())
	}
	if ok, _ := d.Previous(); !ok || d.Row() != 1 {
		t.Errorf("Previous: row %d", d.Row())
	}
	if f, _ := d.Field(0); f.String() != "1" {
		t.Errorf("first distinct row is %v", f)
	}
}

func TestUnionAll(t *testing.T) {
	u, err := NewUnionAll(values(t, 1, 2), values(t, 2, 3))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := execution.Collect(u)
	if err != nil {
		t.Fatal(err)
	}
	if got := flat(t, rows); got != "[1 2 2 3]" {
		t.Errorf("got %s", got)
	}

	if ok, _ := u.Absolute(3); !ok {
		t.Fatal("Absolute(3)")
	}
	pos, err := u.RowPosition()
	if err != nil {
		t.Fatal(err)
	}
	u.Previous()
	if u.Row() != 2 {
		t.Errorf("Previous across children: row %d", u.Row())
	}
	if f, _ := u.Field(0); f.String() != "2" {
		t.Errorf("row 2 holds %v", f)
	}
	if err := u.SetRowPosition(pos); err != nil {
		t.Fatal(err)
	}
	if u.Row() != 3 {
		t.Errorf("SetRowPosition: row %d", u.Row())
	}

	empty, _ := NewUnionAll(values(t), values(t, 9))
	rows, _ = execution.Collect(empty)
	if got := flat(t, rows); got != "[9]" {
		t.Errorf("empty first child: got %s", got)
	}
}
