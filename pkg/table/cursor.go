package table

import (
	"slices"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/config"
	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/primitives"
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// Cursor is a natively scrollable, updatable cursor over a table as one
// connection sees it. Execute takes a snapshot of the committed rows and of
// the connection's pending inserts; rows inserted through the cursor are
// added at the end. Positions are row offsets or tagged insert positions,
// which sort after every offset.
type Cursor struct {
	iterator.CursorState
	table     *Table
	ctx       *transaction.Context
	readLocks bool

	rows     []int64
	idx      int
	cur      *tuple.Tuple
	deleted  bool
	locked   map[int64]bool
	inserted map[int64]bool // rows added by InsertRow since Execute
}

// NewCursor opens a cursor over t in ctx's transaction. Under
// RepeatableRead every committed row read is read-locked until the
// transaction ends.
func NewCursor(t *Table, ctx *transaction.Context, iso config.Isolation) *Cursor {
	return &Cursor{
		CursorState: iterator.NewCursorState(),
		table:       t,
		ctx:         ctx,
		readLocks:   iso == config.RepeatableRead,
		idx:         -1,
	}
}

// Table returns the table the cursor reads.
func (c *Cursor) Table() *Table { return c.table }

func (c *Cursor) Execute() error {
	rows := c.table.Rows()
	live := rows[:0]
	for _, off := range rows {
		if u := c.table.latest(c.ctx, off); u != nil && u.deleted {
			continue
		}
		live = append(live, off)
	}
	c.rows = append(live, c.table.PendingInserts(c.ctx)...)
	c.locked = make(map[int64]bool)
	c.inserted = make(map[int64]bool)
	c.ResetState()
	c.SetCount(len(c.rows))
	c.table.log.Debug("table cursor executed", "rows", len(c.rows))
	return c.BeforeFirst()
}

func (c *Cursor) TupleDesc() *tuple.TupleDescription { return c.table.td }
func (c *Cursor) IsScrollable() bool                 { return true }

func (c *Cursor) BeforeFirst() error {
	c.idx, c.cur = -1, nil
	c.MovedBeforeFirst()
	return nil
}

func (c *Cursor) AfterLast() error {
	c.idx, c.cur = len(c.rows), nil
	c.MovedAfterLast(len(c.rows))
	return nil
}

// load reads the row at idx.
func (c *Cursor) load() error {
	pos := c.rows[c.idx]
	if c.readLocks && !primitives.IsInsertTagged(pos) && !c.locked[pos] {
		if err := c.ctx.Lock(lock.Resource{Table: c.table.name, Row: pos}, lock.Read); err != nil {
			return err
		}
		c.locked[pos] = true
	}
	row, deleted, err := c.table.Read(c.ctx, pos)
	if err != nil {
		return err
	}
	c.cur, c.deleted = row, deleted
	return nil
}

func (c *Cursor) Next() (bool, error) {
	if c.idx < len(c.rows) {
		c.idx++
	}
	if c.idx >= len(c.rows) {
		c.cur = nil
		return c.MovedNext(false), nil
	}
	if err := c.load(); err != nil {
		return false, err
	}
	return c.MovedNext(true), nil
}

func (c *Cursor) Previous() (bool, error) {
	if c.idx >= 0 {
		c.idx--
	}
	if c.idx < 0 {
		c.cur = nil
		return c.MovedPrevious(false), nil
	}
	if err := c.load(); err != nil {
		return false, err
	}
	return c.MovedPrevious(true), nil
}

func (c *Cursor) First() (bool, error) { return c.Absolute(1) }
func (c *Cursor) Last() (bool, error)  { return c.Absolute(-1) }

func (c *Cursor) Absolute(n int) (bool, error) {
	if n < 0 {
		n = len(c.rows) + 1 + n
	}
	switch {
	case n <= 0:
		return false, c.BeforeFirst()
	case n > len(c.rows):
		return false, c.AfterLast()
	}
	c.idx = n - 1
	if err := c.load(); err != nil {
		return false, err
	}
	c.MovedTo(n)
	return true, nil
}

func (c *Cursor) Relative(k int) (bool, error) {
	switch {
	case c.IsBeforeFirst():
		return c.Absolute(k)
	case c.IsAfterLast():
		if k >= 0 {
			return false, nil
		}
		return c.Absolute(len(c.rows) + 1 + k)
	}
	return c.Absolute(c.idx + 1 + k)
}

func (c *Cursor) IsLast() (bool, error) {
	return c.OnRow() && c.idx == len(c.rows)-1, nil
}

func (c *Cursor) RowPosition() (int64, error) {
	if err := c.RequireRow("RowPosition"); err != nil {
		return 0, err
	}
	return c.rows[c.idx], nil
}

func (c *Cursor) SetRowPosition(pos int64) error {
	i, found := slices.BinarySearch(c.rows, pos)
	if !found {
		return dberror.InvalidArgument("row position %d is not part of this result", pos)
	}
	c.idx = i
	if err := c.load(); err != nil {
		return err
	}
	c.MovedTo(i + 1)
	return nil
}

// RowInserted reports whether the current row was added through this
// cursor. Pending rows of earlier statements in the same transaction do not
// count.
func (c *Cursor) RowInserted() bool {
	return c.OnRow() && c.inserted[c.rows[c.idx]]
}

func (c *Cursor) RowDeleted() bool {
	return c.OnRow() && c.deleted
}

func (c *Cursor) Field(i int) (types.Field, error) {
	if err := c.RequireRow("Field"); err != nil {
		return nil, err
	}
	if c.IsNulled() || c.cur == nil {
		return nil, nil
	}
	return c.cur.GetField(i)
}

// InsertRow inserts a row in the cursor's transaction. The row is appended
// to the cursor's rows; the cursor does not move, so from after-last the
// next Previous lands on the new row.
func (c *Cursor) InsertRow(values []types.Field) (int64, error) {
	pos, err := c.table.Insert(c.ctx, values)
	if err != nil {
		return 0, err
	}
	c.rows = append(c.rows, pos)
	if c.inserted == nil {
		c.inserted = make(map[int64]bool)
	}
	c.inserted[pos] = true
	if c.IsAfterLast() {
		c.idx = len(c.rows)
	}
	c.SetCount(len(c.rows))
	return pos, nil
}

func (c *Cursor) UpdateRow(values map[int]types.Field) error {
	if err := c.RequireRow("UpdateRow"); err != nil {
		return err
	}
	if err := c.table.Update(c.ctx, c.rows[c.idx], values); err != nil {
		return err
	}
	return c.load()
}

func (c *Cursor) DeleteRow() error {
	if err := c.RequireRow("DeleteRow"); err != nil {
		return err
	}
	if err := c.table.Delete(c.ctx, c.rows[c.idx]); err != nil {
		return err
	}
	return c.load()
}
