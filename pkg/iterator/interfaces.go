// Package iterator defines the scrollable row cursor contract that every
// relational operator implements, together with the state machine and
// navigation helpers shared by the implementations.
package iterator

import (
	"cursordb/pkg/tuple"
	"cursordb/pkg/types"
)

// RowSource is a scrollable result: a cursor over the rows of a table or of a
// relational operator.
//
// A cursor is always in one of four states: before-first, on a row,
// after-last, or no-current-row. No-current-row is distinct from the
// boundary states; it marks a source that structurally has no row, such as
// the missing side of an outer join. Every navigation method leaves the
// cursor on a row or in a boundary state and reports whether it is on a row.
type RowSource interface {
	// Execute attaches the source to its storage and moves before the first
	// row. It may be called again to re-run the source.
	Execute() error

	// TupleDesc returns the schema of the rows produced.
	TupleDesc() *tuple.TupleDescription

	// IsScrollable reports whether backward and absolute navigation are
	// supported natively. Forward-only sources can be wrapped in a
	// materializing adapter.
	IsScrollable() bool

	BeforeFirst() error
	AfterLast() error
	First() (bool, error)
	Last() (bool, error)
	Next() (bool, error)
	Previous() (bool, error)

	// Absolute moves to row n (1-based). Negative n counts from the end;
	// 0 moves before the first row.
	Absolute(n int) (bool, error)

	// Relative moves k rows from the current one.
	Relative(k int) (bool, error)

	IsBeforeFirst() bool
	IsAfterLast() bool
	IsFirst() bool
	IsLast() (bool, error)

	// Row returns the current 1-based row number, or 0 when not on a row.
	Row() int

	// RowPosition returns a bookmark of the current row that SetRowPosition
	// restores for as long as the source is not executed again.
	RowPosition() (int64, error)
	SetRowPosition(pos int64) error

	// NullRow makes every Field report NULL without moving the cursor.
	// It lasts until the next navigation call.
	NullRow()

	// NoRow moves the cursor to the no-current-row state.
	NoRow()

	// RowInserted reports whether the current row was inserted through
	// this result by the running statement. It decides whether a WHERE
	// condition is checked again for that row.
	RowInserted() bool

	// RowDeleted reports whether the current row was deleted by the running
	// connection after the cursor reached it.
	RowDeleted() bool

	// Field returns column i of the current row. NULL is a nil Field.
	Field(i int) (types.Field, error)
}

// Writable is implemented by sources whose rows can be modified through the
// cursor. Wrapping operators forward it to their child; sources that cannot
// map a row back to one table do not implement it.
//
// InsertRow leaves the cursor where it was; the new row becomes visible at
// the end of the source and its position is returned. UpdateRow and
// DeleteRow act on the current row; values maps column indexes to new
// values.
type Writable interface {
	InsertRow(values []types.Field) (int64, error)
	UpdateRow(values map[int]types.Field) error
	DeleteRow() error
}
