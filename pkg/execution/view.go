package execution

import (
	"fmt"

	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// View presents a query under a table name, optionally renaming its
// columns. Rows, positions and writes pass straight through, so a view over
// a single-table query is as updatable as the query itself.
type View struct {
	passthrough
	name string
	td   *tuple.TupleDescription
}

// NewView names src. columns may be nil to keep the query's column names.
func NewView(name string, src iterator.RowSource, columns []string) (*View, error) {
	if src == nil {
		return nil, fmt.Errorf("view %s: query cannot be nil", name)
	}
	srcTD := src.TupleDesc()
	if columns != nil && len(columns) != srcTD.NumFields() {
		return nil, dberror.InvalidArgument("view %s names %d columns, query has %d",
			name, len(columns), srcTD.NumFields())
	}
	cols := make([]tuple.Column, srcTD.NumFields())
	for i, c := range srcTD.Columns {
		c.Table = name
		if columns != nil {
			c.Name = columns[i]
		}
		cols[i] = c
	}
	td, err := tuple.NewTupleDesc(cols)
	if err != nil {
		return nil, err
	}
	return &View{passthrough: passthrough{child: src}, name: name, td: td}, nil
}

func (v *View) Name() string                        { return v.name }
func (v *View) TupleDesc() *tuple.TupleDescription { return v.td }

func (v *View) Field(i int) (types.Field, error) {
	return v.childField(i)
}

func (v *View) InsertRow(values []types.Field) (int64, error) {
	w, err := v.writable("InsertRow")
	if err != nil {
		return 0, err
	}
	return w.InsertRow(values)
}

func (v *View) UpdateRow(values map[int]types.Field) error {
	w, err := v.writable("UpdateRow")
	if err != nil {
		return err
	}
	return w.UpdateRow(values)
}

func (v *View) DeleteRow() error {
	w, err := v.writable("DeleteRow")
	if err != nil {
		return err
	}
	return w.DeleteRow()
}
