package trie

import (
	"math"
	"unicode/utf16"

	"cursordb/pkg/dberror"
	"cursordb/pkg/types"
)

// Every encoded column starts with a tag unit so that NULL sorts before any
// value and a key never encodes to an empty digit sequence.
const (
	nullUnit    uint16 = 0
	presentUnit uint16 = 1
)

// unknownType marks a transient index column whose type is fixed by the first
// non-NULL value added to it.
const unknownType types.Type = -1

// encodeKey converts a value into its code-unit sequence. Integers and floats
// map to four big-endian units of an order-preserving 64-bit image, strings to
// their UTF-16 units and byte strings to one unit per byte.
//
// ok is false when the value cannot be represented in a column of type typ
// without changing its meaning (2.5 probed against an INT column). Such a
// value can never match a stored key.
func encodeKey(v types.Field, typ types.Type) (units []uint16, ok bool, err error) {
	if v == nil {
		return []uint16{nullUnit}, true, nil
	}

	v, ok, err = coerce(v, typ)
	if err != nil || !ok {
		return nil, ok, err
	}

	switch f := v.(type) {
	case *types.IntField:
		return appendUint64([]uint16{presentUnit}, uint64(f.Value)^(1<<63)), true, nil // #nosec G115
	case *types.FloatField:
		return appendUint64([]uint16{presentUnit}, orderedFloatBits(f.Value)), true, nil
	case *types.BoolField:
		u := uint16(0)
		if f.Value {
			u = 1
		}
		return []uint16{presentUnit, u}, true, nil
	case *types.StringField:
		return append([]uint16{presentUnit}, utf16.Encode([]rune(f.Value))...), true, nil
	case *types.BytesField:
		units = make([]uint16, 0, len(f.Value)+1)
		units = append(units, presentUnit)
		for _, b := range f.Value {
			units = append(units, uint16(b))
		}
		return units, true, nil
	default:
		return nil, false, dberror.Conversion(v.String(), "index key")
	}
}

func coerce(v types.Field, typ types.Type) (types.Field, bool, error) {
	if typ == unknownType || v.Type() == typ {
		return v, true, nil
	}
	switch typ {
	case types.FloatType:
		if iv, ok := v.(*types.IntField); ok {
			return types.NewFloatField(float64(iv.Value)), true, nil
		}
	case types.IntType:
		if fv, ok := v.(*types.FloatField); ok {
			if fv.Value != math.Trunc(fv.Value) || math.IsInf(fv.Value, 0) || math.IsNaN(fv.Value) {
				return nil, false, nil
			}
			return types.NewIntField(int64(fv.Value)), true, nil
		}
	}
	return nil, false, dberror.Conversion(v.String(), typ.String())
}

// orderedFloatBits flips the sign bit of positive numbers and all bits of
// negative ones, so the unsigned images sort like the floats.
func orderedFloatBits(f float64) uint64 {
	if f == 0 {
		f = 0 // fold -0 into +0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | 1<<63
}

func appendUint64(units []uint16, v uint64) []uint16 {
	return append(units,
		uint16(v>>48), uint16(v>>32), uint16(v>>16), uint16(v))
}

func unitsEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
