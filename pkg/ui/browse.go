package ui

import (
	"cursordb/pkg/database"
	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/table"
	"cursordb/pkg/trie"
)

// Order selects how a table is walked: in file order when Index is empty,
// along the named index otherwise.
type Order struct {
	Index      string
	Descending bool
}

func (o Order) String() string {
	s := "file order"
	if o.Index != "" {
		s = "by " + o.Index
	}
	if o.Descending {
		s += " (desc)"
	}
	return s
}

// Page is one screenful of rows read through a cursor.
type Page struct {
	Table   string
	Order   Order
	Number  int
	Columns []string
	Rows    [][]string
	More    bool
	Total   int

	// IndexStats describes the index the page was read through.
	IndexStats *trie.Stats
}

// LoadPage reads page number (from zero) of size rows of tableName as conn
// sees it, positioning the cursor with Absolute.
func LoadPage(conn *database.Connection, tableName string, order Order, number, size int) (Page, error) {
	if size < 1 || number < 0 {
		return Page{}, dberror.InvalidArgument("page %d of size %d", number, size)
	}
	t, err := conn.Database().Table(tableName)
	if err != nil {
		return Page{}, err
	}

	page := Page{Table: t.Name(), Order: order, Number: number, Total: t.Len()}
	var src iterator.RowSource
	if order.Index == "" {
		src = table.NewCursor(t, conn.Context(), conn.Isolation())
	} else {
		ix, ok := t.Index(order.Index)
		if !ok {
			return Page{}, dberror.NotFound("index", order.Index)
		}
		desc := make([]bool, len(ix.Columns))
		for i := range desc {
			desc[i] = order.Descending
		}
		stats, err := ix.Trie().Stats()
		if err != nil {
			return Page{}, err
		}
		page.IndexStats = &stats
		src = table.NewIndexCursor(t, ix, conn.Context(), desc)
	}
	if err := src.Execute(); err != nil {
		return Page{}, err
	}

	td := src.TupleDesc()
	page.Columns = make([]string, td.NumFields())
	for i, c := range td.Columns {
		page.Columns[i] = c.Name
	}

	// File order reverses by counting from the end; an index cursor
	// already walks its keys in the requested direction.
	step := src.Next
	start := number*size + 1
	if order.Index == "" && order.Descending {
		step = src.Previous
		start = -start
	}
	ok, err := src.Absolute(start)
	for ; err == nil && ok && len(page.Rows) < size; ok, err = step() {
		row := make([]string, len(page.Columns))
		for i := range row {
			f, ferr := src.Field(i)
			if ferr != nil {
				return Page{}, ferr
			}
			if f == nil {
				row[i] = "NULL"
			} else {
				row[i] = f.String()
			}
		}
		page.Rows = append(page.Rows, row)
	}
	if err != nil {
		return Page{}, err
	}
	page.More = ok
	return page, nil
}

// orders lists the ways tableName can be walked: file order first, then
// each declared index.
func orders(db *database.Database, tableName string) []string {
	names := []string{""}
	t, err := db.Table(tableName)
	if err != nil {
		return names
	}
	for _, ix := range t.Indexes() {
		names = append(names, ix.Name)
	}
	return names
}
