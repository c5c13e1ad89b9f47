package table

import (
	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/trie"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// IndexCursor reads the committed rows of a table in the order of one of
// its declared indexes. Values reflect the connection's own pending
// changes; the order is that of the committed keys. It is read-only.
type IndexCursor struct {
	iterator.CursorState
	table *Table
	index *Index
	ctx   *transaction.Context
	desc  []bool

	scroll  *trie.ScrollStatus
	pos     int64
	cur     *tuple.Tuple
	deleted bool
	marks   map[int64]indexMark
}

// indexMark is where RowPosition found a row.
type indexMark struct {
	scroll trie.Mark
	row    int
}

// NewIndexCursor opens a cursor over t ordered by ix. desc selects the
// direction of each key column; ctx may be nil to read committed values
// only.
func NewIndexCursor(t *Table, ix *Index, ctx *transaction.Context, desc []bool) *IndexCursor {
	return &IndexCursor{
		CursorState: iterator.NewCursorState(),
		table:       t,
		index:       ix,
		ctx:         ctx,
		desc:        desc,
	}
}

// Index returns the index the cursor follows.
func (c *IndexCursor) Index() *Index { return c.index }

func (c *IndexCursor) Execute() error {
	c.scroll = c.index.trie.CreateScrollStatus(c.desc)
	c.marks = make(map[int64]indexMark)
	c.ResetState()
	return c.BeforeFirst()
}

func (c *IndexCursor) TupleDesc() *tuple.TupleDescription { return c.table.td }
func (c *IndexCursor) IsScrollable() bool                 { return true }

func (c *IndexCursor) BeforeFirst() error {
	c.scroll.Reset()
	c.cur = nil
	c.MovedBeforeFirst()
	return nil
}

func (c *IndexCursor) AfterLast() error {
	if c.Count() < 0 {
		return iterator.DrainForward(c)
	}
	c.scroll.AfterLast()
	c.cur = nil
	c.MovedAfterLast(c.Count())
	return nil
}

func (c *IndexCursor) land(pos int64, ok bool, err error) (bool, error) {
	if err != nil || !ok {
		c.cur = nil
		return false, err
	}
	row, deleted, err := c.table.Read(c.ctx, pos)
	if err != nil {
		return false, err
	}
	c.pos, c.cur, c.deleted = pos, row, deleted
	return true, nil
}

func (c *IndexCursor) Next() (bool, error) {
	ok, err := c.land(c.scroll.Next())
	if err != nil {
		return false, err
	}
	return c.MovedNext(ok), nil
}

func (c *IndexCursor) Previous() (bool, error) {
	ok, err := c.land(c.scroll.Previous())
	if err != nil {
		return false, err
	}
	return c.MovedPrevious(ok), nil
}

func (c *IndexCursor) First() (bool, error)         { return iterator.MoveFirst(c) }
func (c *IndexCursor) Last() (bool, error)          { return iterator.MoveLast(c) }
func (c *IndexCursor) Absolute(n int) (bool, error) { return iterator.MoveAbsolute(c, n) }
func (c *IndexCursor) Relative(k int) (bool, error) { return iterator.MoveRelative(c, k) }
func (c *IndexCursor) IsLast() (bool, error)        { return iterator.ProbeIsLast(c) }

func (c *IndexCursor) RowPosition() (int64, error) {
	if err := c.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	if _, ok := c.marks[c.pos]; !ok {
		c.marks[c.pos] = indexMark{scroll: c.scroll.Mark(), row: c.Row()}
	}
	return c.pos, nil
}

// SetRowPosition returns to a position handed out by RowPosition directly.
// Other positions, and positions taken before the index changed, are found
// by scanning from the first key.
func (c *IndexCursor) SetRowPosition(pos int64) error {
	if m, ok := c.marks[pos]; ok && c.scroll.Restore(m.scroll) {
		if _, err := c.land(pos, true, nil); err != nil {
			return err
		}
		c.MovedTo(m.row)
		return nil
	}
	delete(c.marks, pos)
	if err := c.BeforeFirst(); err != nil {
		return err
	}
	for {
		ok, err := c.Next()
		if err != nil {
			return err
		}
		if !ok {
			return dberror.InvalidArgument("row position %d is not part of this result", pos)
		}
		if c.pos == pos {
			return nil
		}
	}
}

func (c *IndexCursor) RowInserted() bool { return false }
func (c *IndexCursor) RowDeleted() bool  { return c.OnRow() && c.deleted }

func (c *IndexCursor) Field(i int) (types.Field, error) {
	if err := c.RequireRow("Field"); err != nil {
		return nil, err
	}
	if c.IsNulled() || c.cur == nil {
		return nil, nil
	}
	return c.cur.GetField(i)
}
