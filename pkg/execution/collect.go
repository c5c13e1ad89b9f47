package execution

import (
	"cursordb/pkg/iterator"
	"cursordb/pkg/types"
)

// Collect executes src and copies out every row, first to last.
func Collect(src iterator.RowSource) ([][]types.Field, error) {
	if err := src.Execute(); err != nil {
		return nil, err
	}
	return ReadAll(src)
}

// ReadAll copies out every row of an executed source, first to last.
func ReadAll(src iterator.RowSource) ([][]types.Field, error) {
	n := src.TupleDesc().NumFields()
	var rows [][]types.Field
	err := iterator.ForEach(src, func() (bool, error) {
		row := make([]types.Field, n)
		for i := range row {
			f, err := src.Field(i)
			if err != nil {
				return false, err
			}
			row[i] = f
		}
		rows = append(rows, row)
		return true, nil
	})
	return rows, err
}
