package storage

import (
	"io"

	"cursordb/pkg/primitives"
)

// Page is a byte buffer bound for a file offset. It is a transaction unit:
// nothing reaches the file until Commit, and a committed page can be undone
// while the surrounding commit has not completed.
type Page struct {
	file   *File
	offset int64
	data   []byte

	rolledBack bool
	committed  bool

	// before-image for Undo
	before   []byte
	prevSize int64
}

// NewPage creates a page holding data. offset may be
// primitives.UnassignedOffset to append the page on commit.
func NewPage(f *File, offset int64, data []byte) *Page {
	return &Page{file: f, offset: offset, data: data}
}

// File returns the file the page belongs to.
func (p *Page) File() *File { return p.file }

// Offset returns the page's location, or primitives.UnassignedOffset before
// an appended page is committed.
func (p *Page) Offset() int64 { return p.offset }

// Data returns the page's buffer.
func (p *Page) Data() []byte { return p.data }

// Len returns the number of bytes the page writes.
func (p *Page) Len() int { return len(p.data) }

// Commit writes the buffer to the file. A rolled back or empty page is a
// no-op. An unassigned offset becomes the current end of file.
func (p *Page) Commit() error {
	if p.rolledBack || len(p.data) == 0 || p.committed {
		return nil
	}

	p.prevSize = p.file.Size()
	if p.offset == primitives.UnassignedOffset {
		off, err := p.file.Append(p.data)
		if err != nil {
			return err
		}
		p.offset = off
		p.committed = true
		return nil
	}

	if p.offset < p.prevSize {
		n := int64(len(p.data))
		if p.offset+n > p.prevSize {
			n = p.prevSize - p.offset
		}
		p.before = make([]byte, n)
		if _, err := p.file.ReadAt(p.before, p.offset); err != nil && err != io.EOF {
			return err
		}
	}

	if err := p.file.WriteAt(p.data, p.offset); err != nil {
		return err
	}
	p.committed = true
	return nil
}

// Undo reverts a committed write: the bytes it overwrote are restored and
// anything it appended is cut off. Units must be undone in reverse commit
// order.
func (p *Page) Undo() error {
	if !p.committed {
		return nil
	}
	if len(p.before) > 0 {
		if err := p.file.WriteAt(p.before, p.offset); err != nil {
			return err
		}
	}
	if p.file.Size() > p.prevSize {
		if err := p.file.Truncate(p.prevSize); err != nil {
			return err
		}
	}
	p.committed = false
	return nil
}

// Rollback discards the page without writing it.
func (p *Page) Rollback() error {
	p.rolledBack = true
	p.data = nil
	return nil
}

// NewFileUnit represents the creation of a file inside a transaction. The
// file exists as soon as the unit is made; rolling back or undoing the unit
// deletes it.
type NewFileUnit struct {
	file *File
}

// NewNewFileUnit wraps a freshly created file.
func NewNewFileUnit(f *File) *NewFileUnit {
	return &NewFileUnit{file: f}
}

// File returns the created file.
func (u *NewFileUnit) File() *File { return u.file }

// Commit keeps the file.
func (u *NewFileUnit) Commit() error { return nil }

// Undo deletes the file after a failed commit.
func (u *NewFileUnit) Undo() error { return u.file.Remove() }

// Rollback deletes the file. A failure to delete is returned to the caller.
func (u *NewFileUnit) Rollback() error { return u.file.Remove() }
