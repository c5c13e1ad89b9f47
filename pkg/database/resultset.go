package database

import (
	"cursordb/pkg/iterator"
	"cursordb/pkg/types"
)

// ResultSet is an open, scrollable query result. Navigation comes from the
// embedded cursor; writes through the result set run as statements of the
// connection. A ResultSet is not safe for concurrent use.
type ResultSet struct {
	iterator.RowSource
	conn   *Connection
	closed bool
}

// Columns returns the column names of the result.
func (rs *ResultSet) Columns() []string {
	td := rs.TupleDesc()
	names := make([]string, td.NumFields())
	for i, c := range td.Columns {
		names[i] = c.Name
	}
	return names
}

// Get returns column i of the current row; NULL is nil.
func (rs *ResultSet) Get(i int) (types.Field, error) {
	return rs.Field(i)
}

// GetByName returns the column called name, optionally qualified as
// "table.column".
func (rs *ResultSet) GetByName(name string) (types.Field, error) {
	tbl, col := splitQualified(name)
	i, err := rs.TupleDesc().FindColumn(tbl, col)
	if err != nil {
		return nil, err
	}
	return rs.Field(i)
}

// InsertRow inserts a row through the result set. values holds one value
// per result column.
func (rs *ResultSet) InsertRow(values []types.Field) (int64, error) {
	var pos int64
	err := rs.conn.run("INSERT", func() error {
		w, err := iterator.AsWritable(rs.RowSource, "InsertRow")
		if err != nil {
			return err
		}
		pos, err = w.InsertRow(values)
		return err
	})
	return pos, err
}

// UpdateRow changes columns of the current row.
func (rs *ResultSet) UpdateRow(values map[int]types.Field) error {
	return rs.conn.run("UPDATE", func() error {
		w, err := iterator.AsWritable(rs.RowSource, "UpdateRow")
		if err != nil {
			return err
		}
		return w.UpdateRow(values)
	})
}

// DeleteRow deletes the current row. The cursor stays on it; RowDeleted
// reports true.
func (rs *ResultSet) DeleteRow() error {
	return rs.conn.run("DELETE", func() error {
		w, err := iterator.AsWritable(rs.RowSource, "DeleteRow")
		if err != nil {
			return err
		}
		return w.DeleteRow()
	})
}

// Close releases the result set. In auto-commit mode closing the last open
// result set commits the connection's changes.
func (rs *ResultSet) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	return rs.conn.closeResult()
}
