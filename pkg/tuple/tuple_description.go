package tuple

import (
	"fmt"
	"strings"

	"cursordb/pkg/dberror"
	"cursordb/pkg/types"
)

// Column is a typed column descriptor.
type Column struct {
	Name      string     `json:"name"`
	Table     string     `json:"table,omitempty"`
	Type      types.Type `json:"type"`
	Nullable  bool       `json:"nullable"`
	Precision int        `json:"precision,omitempty"`
	Scale     int        `json:"scale,omitempty"`
}

// QualifiedName returns "table.name", or just the name for derived columns.
func (c Column) QualifiedName() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// TupleDescription describes the schema of a row: the ordered list of its
// columns.
type TupleDescription struct {
	Columns []Column
}

// NewTupleDesc creates a new TupleDescription from the given columns.
// The slice is copied.
func NewTupleDesc(cols []Column) (*TupleDescription, error) {
	if len(cols) < 1 {
		return nil, dberror.InvalidArgument("must provide at least one column")
	}
	c := make([]Column, len(cols))
	copy(c, cols)
	return &TupleDescription{Columns: c}, nil
}

// NumFields returns the number of columns.
func (td *TupleDescription) NumFields() int {
	return len(td.Columns)
}

// Column returns the descriptor of the ith column.
func (td *TupleDescription) Column(i int) (Column, error) {
	if i < 0 || i >= len(td.Columns) {
		return Column{}, dberror.InvalidArgument("column index %d out of bounds [0, %d)", i, len(td.Columns))
	}
	return td.Columns[i], nil
}

// TypeAtIndex returns the type of the ith column.
func (td *TupleDescription) TypeAtIndex(i int) (types.Type, error) {
	c, err := td.Column(i)
	if err != nil {
		return 0, err
	}
	return c.Type, nil
}

// FindColumn resolves a column by name. An empty table matches any table;
// a name that matches more than one column is ambiguous.
func (td *TupleDescription) FindColumn(table, name string) (int, error) {
	found := -1
	for i, c := range td.Columns {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		if table != "" && !strings.EqualFold(c.Table, table) {
			continue
		}
		if found >= 0 {
			return -1, dberror.InvalidArgument("column reference %q is ambiguous", qualified(table, name))
		}
		found = i
	}
	if found < 0 {
		return -1, dberror.NotFound("column", qualified(table, name))
	}
	return found, nil
}

// Equals checks that two descriptions have the same column types in order.
// Names are not compared.
func (td *TupleDescription) Equals(other *TupleDescription) bool {
	if other == nil || len(td.Columns) != len(other.Columns) {
		return false
	}
	for i := range td.Columns {
		if td.Columns[i].Type != other.Columns[i].Type {
			return false
		}
	}
	return true
}

// String renders "name(TYPE), ..." for diagnostics.
func (td *TupleDescription) String() string {
	parts := make([]string, len(td.Columns))
	for i, c := range td.Columns {
		parts[i] = fmt.Sprintf("%s(%s)", c.QualifiedName(), c.Type)
	}
	return strings.Join(parts, ", ")
}

// Combine concatenates two descriptions, as for the output of a join.
func Combine(td1, td2 *TupleDescription) *TupleDescription {
	cols := make([]Column, 0, td1.NumFields()+td2.NumFields())
	cols = append(cols, td1.Columns...)
	cols = append(cols, td2.Columns...)
	return &TupleDescription{Columns: cols}
}

func qualified(table, name string) string {
	if table == "" {
		return name
	}
	return table + "." + name
}
