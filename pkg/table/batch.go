package table

import (
	"slices"

	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/logging"
)

// batch collects the newest version of every row one transaction changed in
// a table. It sits in the pending list as a row-less entry whose hooks
// re-check unique keys before anything is written and then bring the row
// directory and the declared indexes in line with the written records.
//
// Index maintenance runs in two passes, removals before additions, so rows
// that swap unique keys within a transaction do not collide.
type batch struct {
	table *Table
	owner string
	units map[int64]*RowUnit
	order []int64
	undo  []func() error
}

// batchFor returns the batch of ctx's transaction, adding it to the
// pending list on the first change.
func (t *Table) batchFor(ctx *transaction.Context) (*batch, error) {
	owner := ctx.Owner()
	t.mu.RLock()
	b := t.batches[owner]
	t.mu.RUnlock()
	if b != nil {
		return b, nil
	}

	b = &batch{table: t, owner: owner, units: make(map[int64]*RowUnit)}
	err := ctx.Add(&transaction.Entry{
		Validate: b.validate,
		Finish:   b.finish,
		Revert:   b.revert,
		Discard:  b.drop,
	})
	if err != nil {
		return nil, err
	}
	ctx.AfterCommit(t.Flush)

	t.mu.Lock()
	t.batches[owner] = b
	t.mu.Unlock()
	return b, nil
}

// put records u as the newest version of its row. The caller holds t.mu.
func (b *batch) put(u *RowUnit) {
	if _, ok := b.units[u.key.Row]; !ok {
		b.order = append(b.order, u.key.Row)
	}
	b.units[u.key.Row] = u
}

// restore makes prev the newest version of row again. The caller holds t.mu.
func (b *batch) restore(row int64, prev *RowUnit) {
	if prev != nil {
		b.units[row] = prev
		return
	}
	delete(b.units, row)
	if i := slices.Index(b.order, row); i >= 0 {
		b.order = slices.Delete(b.order, i, i+1)
	}
}

func (b *batch) drop() {
	t := b.table
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.batches[b.owner] == b {
		delete(t.batches, b.owner)
	}
}

func (b *batch) validate() error {
	t := b.table
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, row := range b.order {
		u := b.units[row]
		if u.deleted {
			continue
		}
		if err := t.checkUnique(b, u); err != nil {
			return err
		}
	}
	return nil
}

func (b *batch) finish() error {
	t := b.table
	t.mu.Lock()
	defer t.mu.Unlock()

	b.undo = b.undo[:0]
	for _, row := range b.order {
		u := b.units[row]
		if !u.written || u.orig == nil {
			continue
		}
		for _, ix := range t.indexes {
			keys := ix.keys(u.orig)
			if _, err := ix.trie.RemoveValue(u.offset, keys); err != nil {
				b.revertLocked()
				return err
			}
			b.undo = append(b.undo, func() error { return ix.trie.AddValues(u.offset, keys) })
		}
		if u.deleted {
			t.removeRowLocked(u.offset)
			b.undo = append(b.undo, func() error { t.addRowLocked(u.offset); return nil })
		}
	}

	for _, row := range b.order {
		u := b.units[row]
		if !u.written || u.deleted {
			continue
		}
		for _, ix := range t.indexes {
			keys := ix.keys(u.values)
			if err := ix.trie.AddValues(u.final, keys); err != nil {
				b.revertLocked()
				return err
			}
			b.undo = append(b.undo, func() error {
				_, err := ix.trie.RemoveValue(u.final, keys)
				return err
			})
		}
		if u.Inserted() {
			t.addRowLocked(u.final)
			b.undo = append(b.undo, func() error { t.removeRowLocked(u.final); return nil })
		}
	}

	if t.batches[b.owner] == b {
		delete(t.batches, b.owner)
	}
	t.log.Debug("table changes applied", "rows", len(b.order), "owner", b.owner)
	return nil
}

func (b *batch) revert() {
	b.table.mu.Lock()
	defer b.table.mu.Unlock()
	b.revertLocked()
}

func (b *batch) revertLocked() {
	for i := len(b.undo) - 1; i >= 0; i-- {
		if err := b.undo[i](); err != nil {
			logging.WithTable(b.table.name).Error("reverting index change", "error", err)
		}
	}
	b.undo = nil
}
