package types

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"hash/fnv"
	"io"

	"cursordb/pkg/dberror"
	"cursordb/pkg/primitives"
)

// CompareFields returns -1, 0 or 1 ordering a against b. NULL (nil) sorts
// before every value. INT and FLOAT compare numerically; other mixed-type
// comparisons fail with a conversion error.
func CompareFields(a, b Field) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}

	switch av := a.(type) {
	case *IntField:
		switch bv := b.(type) {
		case *IntField:
			return cmp.Compare(av.Value, bv.Value), nil
		case *FloatField:
			return cmp.Compare(float64(av.Value), bv.Value), nil
		}
	case *FloatField:
		switch bv := b.(type) {
		case *FloatField:
			return cmp.Compare(av.Value, bv.Value), nil
		case *IntField:
			return cmp.Compare(av.Value, float64(bv.Value)), nil
		}
	case *StringField:
		if bv, ok := b.(*StringField); ok {
			return cmp.Compare(av.Value, bv.Value), nil
		}
	case *BoolField:
		if bv, ok := b.(*BoolField); ok {
			return cmp.Compare(boolRank(av.Value), boolRank(bv.Value)), nil
		}
	case *BytesField:
		if bv, ok := b.(*BytesField); ok {
			return bytes.Compare(av.Value, bv.Value), nil
		}
	}
	return 0, dberror.Conversion(b.String(), a.Type().String())
}

// FieldsEqual reports whether two possibly-NULL values are identical. Unlike
// SQL equality, two NULLs are equal; this is the grouping notion of equality.
func FieldsEqual(a, b Field) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	c, err := CompareFields(a, b)
	return err == nil && c == 0
}

// Deserialize reads a value of type t written by Field.Serialize.
func Deserialize(t Type, r io.Reader) (Field, error) {
	switch t {
	case IntType:
		return deserializeInt(r)
	case FloatType:
		return deserializeFloat(r)
	case StringType:
		return deserializeString(r)
	case BoolType:
		return deserializeBool(r)
	case BytesType:
		return deserializeBytes(r)
	default:
		return nil, dberror.InvalidArgument("cannot deserialize type %d", int(t))
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// fnvHash computes an FNV-1a hash of the given byte slice.
func fnvHash(data []byte) primitives.HashCode {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return primitives.HashCode(h.Sum64())
}

// serializeUint32 writes a uint32 value to the writer in big-endian byte order.
func serializeUint32(w io.Writer, v uint32) error {
	_, err := w.Write(binary.BigEndian.AppendUint32(nil, v))
	return err
}

// serializeUint64 writes a uint64 value to the writer in big-endian byte order.
func serializeUint64(w io.Writer, v uint64) error {
	_, err := w.Write(toBytes64(v))
	return err
}

// readBytes reads exactly size bytes from the reader.
func readBytes(r io.Reader, size uint32) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// toBytes64 converts a uint64 value to an 8-byte big-endian slice.
func toBytes64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), v)
}
