package iterator

import "cursordb/pkg/dberror"

// State is the position state of a cursor.
type State int

const (
	StateBeforeFirst State = iota
	StateOnRow
	StateAfterLast
	StateNoRow
)

func (s State) String() string {
	switch s {
	case StateBeforeFirst:
		return "BEFORE_FIRST"
	case StateOnRow:
		return "ON_ROW"
	case StateAfterLast:
		return "AFTER_LAST"
	case StateNoRow:
		return "NO_ROW"
	default:
		return "UNKNOWN"
	}
}

// CursorState tracks the state, row number and NULL override of a cursor.
// Implementations embed it and call the Moved* methods after each step.
type CursorState struct {
	state  State
	row    int
	count  int // rows in the source, -1 while unknown
	nulled bool
	rows   map[int64]int // row number of each position handed out
}

// NewCursorState returns a state positioned before the first row.
func NewCursorState() CursorState {
	return CursorState{count: -1}
}

// ResetState forgets everything, including the known row count.
func (c *CursorState) ResetState() {
	*c = CursorState{count: -1}
}

func (c *CursorState) CurrentState() State { return c.state }
func (c *CursorState) OnRow() bool         { return c.state == StateOnRow }
func (c *CursorState) IsBeforeFirst() bool { return c.state == StateBeforeFirst }
func (c *CursorState) IsAfterLast() bool   { return c.state == StateAfterLast }
func (c *CursorState) IsFirst() bool       { return c.state == StateOnRow && c.row == 1 }
func (c *CursorState) IsNulled() bool      { return c.nulled }

// Row returns the current 1-based row number, or 0 outside a row. It is -1
// on a row reached backwards from after-last while the row count was
// unknown; the number stays unknown until the cursor is repositioned from a
// boundary or with MovedTo.
func (c *CursorState) Row() int {
	if c.state != StateOnRow {
		return 0
	}
	return c.row
}

// Count returns the number of rows, or -1 when it is not known yet.
func (c *CursorState) Count() int { return c.count }

// SetCount records the number of rows of a source that knows it up front.
func (c *CursorState) SetCount(n int) { c.count = n }

func (c *CursorState) NullRow() { c.nulled = true }

func (c *CursorState) NoRow() {
	c.state, c.row, c.nulled = StateNoRow, 0, false
}

func (c *CursorState) MovedBeforeFirst() {
	c.state, c.row, c.nulled = StateBeforeFirst, 0, false
}

// MovedAfterLast records that the cursor passed the last row. count must be
// the number of rows when known, -1 otherwise.
func (c *CursorState) MovedAfterLast(count int) {
	if count >= 0 {
		c.count = count
	}
	c.state, c.row, c.nulled = StateAfterLast, 0, false
}

// MovedNext records the outcome of a forward step.
func (c *CursorState) MovedNext(ok bool) bool {
	c.nulled = false
	if !ok {
		if c.state == StateOnRow {
			c.count = c.row
		} else if c.state == StateBeforeFirst {
			c.count = 0
		}
		c.state, c.row = StateAfterLast, 0
		return false
	}
	if c.state == StateOnRow {
		if c.row > 0 {
			c.row++
		}
	} else {
		c.row = 1
	}
	c.state = StateOnRow
	return true
}

// MovedPrevious records the outcome of a backward step.
func (c *CursorState) MovedPrevious(ok bool) bool {
	c.nulled = false
	if !ok {
		c.state, c.row = StateBeforeFirst, 0
		return false
	}
	if c.state == StateAfterLast && c.count < 0 {
		c.state, c.row = StateOnRow, -1
		return true
	}
	switch c.state {
	case StateOnRow:
		if c.row > 0 {
			c.row--
		}
	case StateAfterLast:
		c.row = c.count
	default:
		c.row = 1
	}
	c.state = StateOnRow
	return true
}

// MovedTo records a jump to row n.
func (c *CursorState) MovedTo(n int) {
	c.state, c.row, c.nulled = StateOnRow, n, false
}

// RememberRow records the current row number under pos so that
// RememberedRow can return it.
func (c *CursorState) RememberRow(pos int64) {
	c.RememberPosition(pos, c.row)
}

// RememberPosition records row as the row number of pos.
func (c *CursorState) RememberPosition(pos int64, row int) {
	if c.rows == nil {
		c.rows = make(map[int64]int)
	}
	c.rows[pos] = row
}

// RememberedRow returns the row number recorded for pos by RememberRow.
func (c *CursorState) RememberedRow(pos int64) (int, error) {
	n, ok := c.rows[pos]
	if !ok {
		return 0, dberror.InvalidArgument("row position %d was not handed out by this result", pos)
	}
	return n, nil
}

// RequireRow fails with NO_CURRENT_ROW unless the cursor is on a row.
func (c *CursorState) RequireRow(op string) error {
	if c.state != StateOnRow {
		return dberror.NoCurrentRow(op)
	}
	return nil
}
