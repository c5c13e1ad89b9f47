package database

import (
	"fmt"
	"strings"

	"cursordb/pkg/iterator"
)

// ResultFormatter handles formatting of query execution results
type ResultFormatter struct{}

// NewResultFormatter creates a new instance of ResultFormatter
func NewResultFormatter() *ResultFormatter {
	return &ResultFormatter{}
}

// FormatRows reads every row of rs from the first one into a QueryResult.
// The cursor is left after the last row.
func (f *ResultFormatter) FormatRows(rs *ResultSet) QueryResult {
	if rs == nil {
		return QueryResult{
			Success: true,
			Message: "Query returned no results",
			Rows:    [][]string{},
		}
	}

	columns := rs.Columns()
	for i, name := range columns {
		if name == "" {
			columns[i] = fmt.Sprintf("col_%d", i)
		}
	}

	rows := make([][]string, 0)
	err := iterator.ForEach(rs, func() (bool, error) {
		row := make([]string, len(columns))
		for i := range columns {
			field, err := rs.Get(i)
			if err != nil {
				return false, err
			}
			if field == nil {
				row[i] = "NULL"
			} else {
				row[i] = field.String()
			}
		}
		rows = append(rows, row)
		return true, nil
	})
	if err != nil {
		return QueryResult{Success: false, Columns: columns, Rows: rows, Message: err.Error(), Error: err}
	}

	return QueryResult{
		Success: true,
		Columns: columns,
		Rows:    rows,
		Message: fmt.Sprintf("%d row(s) returned", len(rows)),
	}
}

// FormatExec converts the outcome of Connection.Exec to standard format
func (f *ResultFormatter) FormatExec(stmt Statement, rowsAffected int, err error) QueryResult {
	if err != nil {
		return QueryResult{Success: false, Message: err.Error(), Error: err}
	}

	action := ""
	switch stmt.(type) {
	case Insert, *Insert:
		action = "inserted"
	case Update, *Update:
		action = "updated"
	case Delete, *Delete:
		action = "deleted"
	default:
		return QueryResult{
			Success:      true,
			RowsAffected: rowsAffected,
			Message:      stmt.Kind() + " completed",
		}
	}

	return QueryResult{
		Success:      true,
		RowsAffected: rowsAffected,
		Message:      fmt.Sprintf("%d row(s) %s", rowsAffected, action),
	}
}

// Render draws a QueryResult as an aligned text table followed by its
// message.
func (f *ResultFormatter) Render(r QueryResult) string {
	var b strings.Builder
	if len(r.Columns) > 0 {
		widths := make([]int, len(r.Columns))
		for i, c := range r.Columns {
			widths[i] = len(c)
		}
		for _, row := range r.Rows {
			for i, v := range row {
				widths[i] = max(widths[i], len(v))
			}
		}

		line := func(cells []string) {
			for i, v := range cells {
				if i > 0 {
					b.WriteString(" | ")
				}
				fmt.Fprintf(&b, "%-*s", widths[i], v)
			}
			b.WriteByte('\n')
		}
		line(r.Columns)
		sep := make([]string, len(widths))
		for i, w := range widths {
			sep[i] = strings.Repeat("-", w)
		}
		line(sep)
		for _, row := range r.Rows {
			line(row)
		}
	}
	b.WriteString(r.Message)
	return b.String()
}
