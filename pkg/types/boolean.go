package types

import (
	"io"

	"cursordb/pkg/primitives"
)

// BoolField represents a boolean field. FALSE sorts before TRUE.
type BoolField struct {
	Value bool
}

func NewBoolField(value bool) *BoolField {
	return &BoolField{Value: value}
}

func (b *BoolField) Serialize(w io.Writer) error {
	var v byte
	if b.Value {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

func (b *BoolField) Compare(op primitives.Predicate, other Field) (bool, error) {
	c, err := CompareFields(b, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func (b *BoolField) Type() Type {
	return BoolType
}

func (b *BoolField) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

func (b *BoolField) Equals(other Field) bool {
	o, ok := other.(*BoolField)
	return ok && b.Value == o.Value
}

func (b *BoolField) Hash() (primitives.HashCode, error) {
	if b.Value {
		return 1, nil
	}
	return 0, nil
}

func (b *BoolField) Length() uint32 {
	return 1
}

func deserializeBool(r io.Reader) (*BoolField, error) {
	v, err := readBytes(r, 1)
	if err != nil {
		return nil, err
	}
	return NewBoolField(v[0] != 0), nil
}
