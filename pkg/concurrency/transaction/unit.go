package transaction

import (
	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/storage"
)

// Unit is a pending physical change. Commit writes it, Undo reverts a
// committed write when a later unit of the same commit fails, and Rollback
// discards it without writing.
type Unit interface {
	Commit() error
	Undo() error
	Rollback() error
}

// fileUnit is implemented by units that write to a file; those files are
// synced at the end of a commit.
type fileUnit interface {
	File() *storage.File
}

// RowKey identifies a logical row. Row is a file offset or a tagged insert
// position.
type RowKey struct {
	Table string
	Row   int64
}

// Entry is one element of a connection's pending list.
//
// Only the last entry of a row's version chain is written at commit; earlier
// versions are discarded. Entries without a Row are always written.
type Entry struct {
	Unit Unit
	Row  *RowKey

	// Lock, when LockLevel is not lock.None, is acquired when the entry is
	// added and restored to its previous level when the entry is rolled back.
	Lock      lock.Resource
	LockLevel lock.Level

	// Validate runs before anything is written and can veto the commit.
	Validate func() error
	// Finish runs after every unit is written, in list order. Revert undoes a
	// Finish that ran when a later one fails.
	Finish func() error
	Revert func()
	// Discard runs when the entry is rolled back.
	Discard func()

	prevLevel lock.Level
}
