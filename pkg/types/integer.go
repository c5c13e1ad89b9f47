package types

import (
	"encoding/binary"
	"io"
	"strconv"

	"cursordb/pkg/primitives"
)

// IntField represents a 64-bit signed integer field
type IntField struct {
	Value int64
}

func NewIntField(value int64) *IntField {
	return &IntField{Value: value}
}

func (f *IntField) Serialize(w io.Writer) error {
	return serializeUint64(w, uint64(f.Value)) // #nosec G115
}

// Compare compares against an IntField or, numerically, a FloatField.
func (f *IntField) Compare(op primitives.Predicate, other Field) (bool, error) {
	c, err := CompareFields(f, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func (f *IntField) Type() Type {
	return IntType
}

func (f *IntField) String() string {
	return strconv.FormatInt(f.Value, 10)
}

func (f *IntField) Equals(other Field) bool {
	o, ok := other.(*IntField)
	return ok && f.Value == o.Value
}

func (f *IntField) Hash() (primitives.HashCode, error) {
	return fnvHash(toBytes64(uint64(f.Value))), nil // #nosec G115
}

func (f *IntField) Length() uint32 {
	return 8
}

func deserializeInt(r io.Reader) (*IntField, error) {
	b, err := readBytes(r, 8)
	if err != nil {
		return nil, err
	}
	return NewIntField(int64(binary.BigEndian.Uint64(b))), nil // #nosec G115
}
