package types

import (
	"encoding/binary"
	"io"

	"cursordb/pkg/primitives"
)

// StringField represents a variable-length string field.
type StringField struct {
	Value string
}

func NewStringField(value string) *StringField {
	return &StringField{Value: value}
}

// Serialize writes a 4-byte length prefix followed by the UTF-8 bytes.
func (s *StringField) Serialize(w io.Writer) error {
	if err := serializeUint32(w, uint32(len(s.Value))); err != nil { // #nosec G115
		return err
	}
	_, err := io.WriteString(w, s.Value)
	return err
}

func (s *StringField) Compare(op primitives.Predicate, other Field) (bool, error) {
	c, err := CompareFields(s, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func (s *StringField) Type() Type {
	return StringType
}

func (s *StringField) String() string {
	return s.Value
}

func (s *StringField) Equals(other Field) bool {
	o, ok := other.(*StringField)
	return ok && s.Value == o.Value
}

func (s *StringField) Hash() (primitives.HashCode, error) {
	return fnvHash([]byte(s.Value)), nil
}

func (s *StringField) Length() uint32 {
	return 4 + uint32(len(s.Value)) // #nosec G115
}

func deserializeString(r io.Reader) (*StringField, error) {
	lb, err := readBytes(r, 4)
	if err != nil {
		return nil, err
	}
	b, err := readBytes(r, binary.BigEndian.Uint32(lb))
	if err != nil {
		return nil, err
	}
	return NewStringField(string(b)), nil
}
