package tuple

import (
	"errors"
	"testing"

	"cursordb/pkg/dberror"
	"cursordb/pkg/types"
)

func testDesc(t *testing.T) *TupleDescription {
	t.Helper()
	td, err := NewTupleDesc([]Column{
		{Name: "id", Table: "users", Type: types.IntType},
		{Name: "name", Table: "users", Type: types.StringType, Nullable: true},
		{Name: "score", Table: "users", Type: types.FloatType, Nullable: true},
	})
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return td
}

func TestSetFieldTypeCheck(t *testing.T) {
	tup := NewTuple(testDesc(t))

	if err := tup.SetField(0, types.NewStringField("x")); !errors.Is(err, dberror.ErrConversion) {
		t.Errorf("string into INT: err = %v", err)
	}
	if err := tup.SetField(2, types.NewIntField(3)); err != nil {
		t.Fatalf("int into FLOAT: %v", err)
	}
	f, _ := tup.GetField(2)
	if _, ok := f.(*types.FloatField); !ok {
		t.Errorf("expected widened float, got %T", f)
	}
	if err := tup.SetField(5, nil); err == nil {
		t.Error("expected out of bounds error")
	}
}

func TestEncodeDecode(t *testing.T) {
	td := testDesc(t)
	tup, err := FromFields(td, types.NewIntField(7), nil, types.NewFloatField(1.5))
	if err != nil {
		t.Fatal(err)
	}

	data, err := Encode(tup)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(td, data, "users.tbl")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.String() != tup.String() {
		t.Errorf("got %q, want %q", got.String(), tup.String())
	}
}

func TestDecodeTruncated(t *testing.T) {
	td := testDesc(t)
	tup, _ := FromFields(td, types.NewIntField(7), types.NewStringField("ann"), nil)
	data, _ := Encode(tup)

	_, err := Decode(td, data[:len(data)-2], "users.tbl")
	if !errors.Is(err, dberror.ErrCorruption) {
		t.Errorf("err = %v, want corruption", err)
	}
}

func TestFindColumn(t *testing.T) {
	td := testDesc(t)
	orders, _ := NewTupleDesc([]Column{{Name: "id", Table: "orders", Type: types.IntType}})
	joined := Combine(td, orders)

	if i, err := joined.FindColumn("", "score"); err != nil || i != 2 {
		t.Errorf("score: %d, %v", i, err)
	}
	if i, err := joined.FindColumn("orders", "ID"); err != nil || i != 3 {
		t.Errorf("orders.id: %d, %v", i, err)
	}
	if _, err := joined.FindColumn("", "id"); !errors.Is(err, dberror.ErrInvalidArgument) {
		t.Errorf("ambiguous id: err = %v", err)
	}
	if _, err := joined.FindColumn("", "missing"); !errors.Is(err, dberror.ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
}
