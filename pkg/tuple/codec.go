package tuple

import (
	"bytes"

	"cursordb/pkg/dberror"
	"cursordb/pkg/types"
)

// Encode serializes a tuple as a NULL bitmap (one bit per column, LSB first)
// followed by the serialized non-NULL fields in column order.
func Encode(t *Tuple) ([]byte, error) {
	n := t.TupleDesc.NumFields()
	var buf bytes.Buffer

	bitmap := make([]byte, (n+7)/8)
	for i, f := range t.fields {
		if f == nil {
			bitmap[i/8] |= 1 << (i % 8)
		}
	}
	buf.Write(bitmap)

	for i, f := range t.fields {
		if f == nil {
			continue
		}
		if err := f.Serialize(&buf); err != nil {
			return nil, dberror.Wrap(err, dberror.CodeIOFailure, "Encode", "Tuple").
				WithDetail("column %d", i)
		}
	}
	return buf.Bytes(), nil
}

// Decode parses data produced by Encode against td. Truncated or
// mistyped payloads are reported as corruption of source.
func Decode(td *TupleDescription, data []byte, source string) (*Tuple, error) {
	n := td.NumFields()
	bm := (n + 7) / 8
	if len(data) < bm {
		return nil, dberror.Corruption(source, "row payload of %d bytes is shorter than its null bitmap", len(data))
	}

	r := bytes.NewReader(data[bm:])
	t := NewTuple(td)
	for i := 0; i < n; i++ {
		if data[i/8]&(1<<(i%8)) != 0 {
			continue
		}
		f, err := types.Deserialize(td.Columns[i].Type, r)
		if err != nil {
			return nil, dberror.Corruption(source, "column %d: %v", i, err)
		}
		t.fields[i] = f
	}
	return t, nil
}
