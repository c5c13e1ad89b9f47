package types

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"cursordb/pkg/primitives"
)

// FloatField represents a 64-bit IEEE 754 floating point field.
type FloatField struct {
	Value float64
}

func NewFloatField(value float64) *FloatField {
	return &FloatField{Value: value}
}

func (f *FloatField) Serialize(w io.Writer) error {
	return serializeUint64(w, math.Float64bits(f.Value))
}

func (f *FloatField) Compare(op primitives.Predicate, other Field) (bool, error) {
	c, err := CompareFields(f, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func (f *FloatField) Type() Type {
	return FloatType
}

func (f *FloatField) String() string {
	return strconv.FormatFloat(f.Value, 'g', -1, 64)
}

func (f *FloatField) Equals(other Field) bool {
	o, ok := other.(*FloatField)
	return ok && f.Value == o.Value
}

func (f *FloatField) Hash() (primitives.HashCode, error) {
	return fnvHash(toBytes64(math.Float64bits(f.Value))), nil
}

func (f *FloatField) Length() uint32 {
	return 8
}

func deserializeFloat(r io.Reader) (*FloatField, error) {
	b, err := readBytes(r, 8)
	if err != nil {
		return nil, err
	}
	return NewFloatField(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
}
