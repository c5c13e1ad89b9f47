package execution

import (
	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// MemoryResult is a natively scrollable result over materialized rows. The
// position of a row is its index.
type MemoryResult struct {
	iterator.CursorState
	td   *tuple.TupleDescription
	rows [][]types.Field
	idx  int
}

// NewMemoryResult returns a result over rows. The rows are not copied.
func NewMemoryResult(td *tuple.TupleDescription, rows [][]types.Field) *MemoryResult {
	m := &MemoryResult{CursorState: iterator.NewCursorState(), td: td, rows: rows, idx: -1}
	m.SetCount(len(rows))
	return m
}

// Append adds a row at the end and returns its position.
func (m *MemoryResult) Append(row []types.Field) int64 {
	m.rows = append(m.rows, row)
	if m.IsAfterLast() {
		m.idx = len(m.rows)
	}
	m.SetCount(len(m.rows))
	return int64(len(m.rows) - 1)
}

// SetRows replaces the rows and moves before the first one.
func (m *MemoryResult) SetRows(rows [][]types.Field) {
	m.rows = rows
	m.ResetState()
	m.SetCount(len(rows))
	m.idx = -1
}

// Rows returns the materialized rows.
func (m *MemoryResult) Rows() [][]types.Field { return m.rows }

func (m *MemoryResult) Execute() error {
	return m.BeforeFirst()
}

func (m *MemoryResult) TupleDesc() *tuple.TupleDescription { return m.td }
func (m *MemoryResult) IsScrollable() bool                 { return true }

func (m *MemoryResult) BeforeFirst() error {
	m.idx = -1
	m.MovedBeforeFirst()
	return nil
}

func (m *MemoryResult) AfterLast() error {
	m.idx = len(m.rows)
	m.MovedAfterLast(len(m.rows))
	return nil
}

func (m *MemoryResult) Next() (bool, error) {
	if m.idx < len(m.rows) {
		m.idx++
	}
	return m.MovedNext(m.idx < len(m.rows)), nil
}

func (m *MemoryResult) Previous() (bool, error) {
	if m.idx >= 0 {
		m.idx--
	}
	return m.MovedPrevious(m.idx >= 0), nil
}

func (m *MemoryResult) First() (bool, error) { return m.Absolute(1) }
func (m *MemoryResult) Last() (bool, error)  { return m.Absolute(-1) }

func (m *MemoryResult) Absolute(n int) (bool, error) {
	if n < 0 {
		n = len(m.rows) + 1 + n
	}
	switch {
	case n <= 0:
		return false, m.BeforeFirst()
	case n > len(m.rows):
		return false, m.AfterLast()
	}
	m.idx = n - 1
	m.MovedTo(n)
	return true, nil
}

func (m *MemoryResult) Relative(k int) (bool, error) {
	switch {
	case m.IsBeforeFirst():
		return m.Absolute(k)
	case m.IsAfterLast():
		if k >= 0 {
			return false, nil
		}
		return m.Absolute(k)
	}
	return m.Absolute(m.idx + 1 + k)
}

func (m *MemoryResult) IsLast() (bool, error) {
	return m.OnRow() && m.idx == len(m.rows)-1, nil
}

func (m *MemoryResult) RowPosition() (int64, error) {
	if err := m.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	return int64(m.idx), nil
}

func (m *MemoryResult) SetRowPosition(pos int64) error {
	if pos < 0 || pos >= int64(len(m.rows)) {
		return dberror.InvalidArgument("row position %d out of range [0, %d)", pos, len(m.rows))
	}
	m.idx = int(pos)
	m.MovedTo(m.idx + 1)
	return nil
}

func (m *MemoryResult) RowInserted() bool { return false }
func (m *MemoryResult) RowDeleted() bool  { return false }

func (m *MemoryResult) Field(i int) (types.Field, error) {
	if err := m.RequireRow("Field"); err != nil {
		return nil, err
	}
	if m.IsNulled() {
		return nil, nil
	}
	row := m.rows[m.idx]
	if i < 0 || i >= len(row) {
		return nil, dberror.InvalidArgument("column index %d out of bounds [0, %d)", i, len(row))
	}
	return row[i], nil
}
