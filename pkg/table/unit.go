package table

import (
	"errors"

	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/primitives"
	"cursordb/pkg/storage"
	"cursordb/pkg/tuple"
)

// RowUnit is the transaction unit of one version of a row. Only the unit of
// a row's newest version is committed; it writes the row's record, moving it
// to the end of the file when the new values no longer fit.
type RowUnit struct {
	table   *Table
	key     transaction.RowKey
	offset  int64        // first record of a committed row, UnassignedOffset for an insert
	orig    *tuple.Tuple // committed values, nil for an insert
	values  *tuple.Tuple // values of this version; the last values for a delete
	deleted bool

	pages      []*storage.Page
	final      int64 // row offset after commit
	written    bool
	rolledBack bool
}

// File returns the row file, synced at the end of the commit.
func (u *RowUnit) File() *storage.File { return u.table.file }

// Values returns the row as this version leaves it.
func (u *RowUnit) Values() *tuple.Tuple { return u.values }

// Deleted reports whether this version removes the row.
func (u *RowUnit) Deleted() bool { return u.deleted }

// Inserted reports whether the row did not exist before the transaction.
func (u *RowUnit) Inserted() bool { return u.offset == primitives.UnassignedOffset }

func (u *RowUnit) Commit() error {
	if u.written || u.rolledBack {
		return nil
	}

	u.table.mu.Lock()
	defer u.table.mu.Unlock()

	var err error
	switch {
	case u.Inserted():
		if u.deleted {
			return nil
		}
		err = u.commitInsert()
	case u.deleted:
		err = u.commitDelete()
	default:
		err = u.commitUpdate()
	}
	if err != nil {
		return errors.Join(err, u.undoPages())
	}
	u.written = true
	return nil
}

func (u *RowUnit) commitInsert() error {
	payload, err := tuple.Encode(u.values)
	if err != nil {
		return err
	}
	p := storage.NewPage(u.table.file, primitives.UnassignedOffset, newRecord(statusLive, payload))
	if err := u.write(p); err != nil {
		return err
	}
	u.final = p.Offset()
	return nil
}

func (u *RowUnit) commitDelete() error {
	f := u.table.file
	at, _, err := locate(f, u.offset)
	if err != nil {
		return err
	}
	if err := u.write(storage.NewPage(f, u.offset, []byte{byte(statusFree)})); err != nil {
		return err
	}
	if at != u.offset {
		if err := u.write(storage.NewPage(f, at, []byte{byte(statusFree)})); err != nil {
			return err
		}
	}
	u.final = u.offset
	return nil
}

func (u *RowUnit) commitUpdate() error {
	f := u.table.file
	payload, err := tuple.Encode(u.values)
	if err != nil {
		return err
	}
	at, h, err := locate(f, u.offset)
	if err != nil {
		return err
	}
	u.final = u.offset

	if len(payload) <= h.capacity {
		status := statusLive
		if at != u.offset {
			status = statusMoved
		}
		return u.write(storage.NewPage(f, at, rewriteRecord(status, h.capacity, payload)))
	}

	moved := storage.NewPage(f, primitives.UnassignedOffset, newRecord(statusMoved, payload))
	if err := u.write(moved); err != nil {
		return err
	}
	first := h
	if at != u.offset {
		if first, err = readHeader(f, u.offset); err != nil {
			return err
		}
	}
	if err := u.write(storage.NewPage(f, u.offset, forwardRecord(first.capacity, moved.Offset()))); err != nil {
		return err
	}
	if at != u.offset {
		return u.write(storage.NewPage(f, at, []byte{byte(statusFree)}))
	}
	return nil
}

func (u *RowUnit) write(p *storage.Page) error {
	if err := p.Commit(); err != nil {
		return err
	}
	u.pages = append(u.pages, p)
	return nil
}

func (u *RowUnit) undoPages() error {
	var errs []error
	for i := len(u.pages) - 1; i >= 0; i-- {
		if err := u.pages[i].Undo(); err != nil {
			errs = append(errs, err)
		}
	}
	u.pages = nil
	return errors.Join(errs...)
}

func (u *RowUnit) Undo() error {
	if !u.written {
		return nil
	}
	u.table.mu.Lock()
	defer u.table.mu.Unlock()

	u.written = false
	return u.undoPages()
}

func (u *RowUnit) Rollback() error {
	u.rolledBack = true
	return nil
}
