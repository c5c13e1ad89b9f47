package execution

import (
	"cursordb/pkg/dberror"
	"cursordb/pkg/iterator"
	"cursordb/pkg/types"
)

// passthrough forwards navigation one-to-one to a child and keeps only the
// NullRow override of its own. Operators that reshape columns without
// adding or removing rows embed it.
type passthrough struct {
	child  iterator.RowSource
	nulled bool
}

func (p *passthrough) Execute() error {
	p.nulled = false
	return p.child.Execute()
}

func (p *passthrough) IsScrollable() bool { return p.child.IsScrollable() }

func (p *passthrough) BeforeFirst() error {
	p.nulled = false
	return p.child.BeforeFirst()
}

func (p *passthrough) AfterLast() error {
	p.nulled = false
	return p.child.AfterLast()
}

func (p *passthrough) move(fn func() (bool, error)) (bool, error) {
	p.nulled = false
	return fn()
}

func (p *passthrough) First() (bool, error)    { return p.move(p.child.First) }
func (p *passthrough) Last() (bool, error)     { return p.move(p.child.Last) }
func (p *passthrough) Next() (bool, error)     { return p.move(p.child.Next) }
func (p *passthrough) Previous() (bool, error) { return p.move(p.child.Previous) }

func (p *passthrough) Absolute(n int) (bool, error) {
	p.nulled = false
	return p.child.Absolute(n)
}

func (p *passthrough) Relative(k int) (bool, error) {
	p.nulled = false
	return p.child.Relative(k)
}

func (p *passthrough) IsBeforeFirst() bool   { return p.child.IsBeforeFirst() }
func (p *passthrough) IsAfterLast() bool     { return p.child.IsAfterLast() }
func (p *passthrough) IsFirst() bool         { return p.child.IsFirst() }
func (p *passthrough) IsLast() (bool, error) { return p.child.IsLast() }
func (p *passthrough) Row() int              { return p.child.Row() }

func (p *passthrough) RowPosition() (int64, error) { return p.child.RowPosition() }

func (p *passthrough) SetRowPosition(pos int64) error {
	p.nulled = false
	return p.child.SetRowPosition(pos)
}

func (p *passthrough) NullRow() { p.nulled = true }

func (p *passthrough) NoRow() {
	p.nulled = false
	p.child.NoRow()
}

func (p *passthrough) RowInserted() bool { return p.child.RowInserted() }
func (p *passthrough) RowDeleted() bool  { return p.child.RowDeleted() }

func (p *passthrough) writable(op string) (iterator.Writable, error) {
	return iterator.AsWritable(p.child, op)
}

func (p *passthrough) childField(i int) (types.Field, error) {
	if p.nulled {
		if p.child.Row() == 0 {
			return nil, dberror.NoCurrentRow("Field")
		}
		return nil, nil
	}
	return p.child.Field(i)
}
