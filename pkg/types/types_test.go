package types

import (
	"bytes"
	"errors"
	"testing"

	"cursordb/pkg/dberror"
	"cursordb/pkg/primitives"
)

func TestCompareFields(t *testing.T) {
	tests := []struct {
		name string
		a, b Field
		want int
	}{
		{"null null", nil, nil, 0},
		{"null first", nil, NewIntField(-5), -1},
		{"value after null", NewStringField(""), nil, 1},
		{"ints", NewIntField(3), NewIntField(7), -1},
		{"int vs float", NewIntField(3), NewFloatField(2.5), 1},
		{"float vs int equal", NewFloatField(4), NewIntField(4), 0},
		{"strings", NewStringField("abc"), NewStringField("abd"), -1},
		{"bools", NewBoolField(true), NewBoolField(false), 1},
		{"bytes", NewBytesField([]byte{1, 2}), NewBytesField([]byte{1, 2}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareFields(tt.a, tt.b)
			if err != nil {
				t.Fatalf("CompareFields: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCompareFieldsMismatch(t *testing.T) {
	_, err := CompareFields(NewStringField("1"), NewIntField(1))
	if !errors.Is(err, dberror.ErrConversion) {
		t.Errorf("err = %v, want conversion error", err)
	}
}

func TestFieldCompareOperators(t *testing.T) {
	ok, err := NewIntField(5).Compare(primitives.GreaterThan, NewIntField(2))
	if err != nil || !ok {
		t.Errorf("5 > 2: got %v, %v", ok, err)
	}
	ok, err = NewStringField("a").Compare(primitives.Equals, NewStringField("b"))
	if err != nil || ok {
		t.Errorf("'a' = 'b': got %v, %v", ok, err)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	fields := []Field{
		NewIntField(-42),
		NewFloatField(3.25),
		NewStringField("héllo"),
		NewBoolField(true),
		NewBytesField([]byte{0, 255, 7}),
	}
	for _, f := range fields {
		var buf bytes.Buffer
		if err := f.Serialize(&buf); err != nil {
			t.Fatalf("Serialize %s: %v", f, err)
		}
		if uint32(buf.Len()) != f.Length() {
			t.Errorf("%s: wrote %d bytes, Length() = %d", f, buf.Len(), f.Length())
		}
		got, err := Deserialize(f.Type(), &buf)
		if err != nil {
			t.Fatalf("Deserialize %s: %v", f, err)
		}
		if !got.Equals(f) {
			t.Errorf("round trip: got %s, want %s", got, f)
		}
	}
}

func TestFieldsEqual(t *testing.T) {
	if !FieldsEqual(nil, nil) {
		t.Error("NULL should group with NULL")
	}
	if FieldsEqual(nil, NewIntField(0)) {
		t.Error("NULL must differ from 0")
	}
	if !FieldsEqual(NewIntField(2), NewFloatField(2)) {
		t.Error("2 and 2.0 compare equal")
	}
}

func TestParseType(t *testing.T) {
	for name, want := range map[string]Type{"int": IntType, "VARCHAR": StringType, "blob": BytesType} {
		got, err := ParseType(name)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseType("money"); err == nil {
		t.Error("expected error for unknown type")
	}
}
