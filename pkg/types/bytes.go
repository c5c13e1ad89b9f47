package types

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"

	"cursordb/pkg/primitives"
)

// BytesField represents a variable-length binary field.
type BytesField struct {
	Value []byte
}

func NewBytesField(value []byte) *BytesField {
	return &BytesField{Value: value}
}

func (f *BytesField) Serialize(w io.Writer) error {
	if err := serializeUint32(w, uint32(len(f.Value))); err != nil { // #nosec G115
		return err
	}
	_, err := w.Write(f.Value)
	return err
}

func (f *BytesField) Compare(op primitives.Predicate, other Field) (bool, error) {
	c, err := CompareFields(f, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func (f *BytesField) Type() Type {
	return BytesType
}

func (f *BytesField) String() string {
	return "x'" + hex.EncodeToString(f.Value) + "'"
}

func (f *BytesField) Equals(other Field) bool {
	o, ok := other.(*BytesField)
	return ok && bytes.Equal(f.Value, o.Value)
}

func (f *BytesField) Hash() (primitives.HashCode, error) {
	return fnvHash(f.Value), nil
}

func (f *BytesField) Length() uint32 {
	return 4 + uint32(len(f.Value)) // #nosec G115
}

func deserializeBytes(r io.Reader) (*BytesField, error) {
	lb, err := readBytes(r, 4)
	if err != nil {
		return nil, err
	}
	b, err := readBytes(r, binary.BigEndian.Uint32(lb))
	if err != nil {
		return nil, err
	}
	return NewBytesField(b), nil
}
