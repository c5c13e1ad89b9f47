package tuple

import (
	"strings"

	"cursordb/pkg/dberror"
	"cursordb/pkg/types"
)

// Tuple represents a row of data. A nil field is SQL NULL.
type Tuple struct {
	TupleDesc *TupleDescription
	fields    []types.Field
}

// NewTuple creates a new all-NULL tuple with the given schema
func NewTuple(td *TupleDescription) *Tuple {
	return &Tuple{
		TupleDesc: td,
		fields:    make([]types.Field, td.NumFields()),
	}
}

// SetField stores field in column i. An INT value stored into a FLOAT column
// is widened; any other type mismatch is a conversion error.
func (t *Tuple) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return dberror.InvalidArgument("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	if field == nil {
		t.fields[i] = nil
		return nil
	}

	expected := t.TupleDesc.Columns[i].Type
	if field.Type() != expected {
		iv, ok := field.(*types.IntField)
		if !ok || expected != types.FloatType {
			return dberror.Conversion(field.String(), expected.String())
		}
		field = types.NewFloatField(float64(iv.Value))
	}

	t.fields[i] = field
	return nil
}

// GetField returns the value of the ith field
func (t *Tuple) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, dberror.InvalidArgument("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	return t.fields[i], nil
}

// Fields returns the backing field slice. Callers must not modify it.
func (t *Tuple) Fields() []types.Field {
	return t.fields
}

// String returns the fields separated by tabs, NULL rendered as "null".
func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, field := range t.fields {
		if field != nil {
			parts[i] = field.String()
		} else {
			parts[i] = "null"
		}
	}
	return strings.Join(parts, "\t")
}

// Clone returns a copy of this tuple sharing the immutable field values.
func (t *Tuple) Clone() *Tuple {
	fields := make([]types.Field, len(t.fields))
	copy(fields, t.fields)
	return &Tuple{TupleDesc: t.TupleDesc, fields: fields}
}

// FromFields builds a tuple from values, checking every value against td.
func FromFields(td *TupleDescription, fields ...types.Field) (*Tuple, error) {
	if len(fields) != td.NumFields() {
		return nil, dberror.InvalidArgument("expected %d values, got %d", td.NumFields(), len(fields))
	}
	t := NewTuple(td)
	for i, f := range fields {
		if err := t.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return t, nil
}
