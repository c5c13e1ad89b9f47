// Package transaction implements the per-connection transaction context: the
// ordered list of pending units, per-row version chains, savepoints, and the
// commit and rollback protocols over them.
package transaction

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
	"cursordb/pkg/storage"
)

// Status represents the current state of a transaction
type Status int

const (
	TxActive Status = iota
	TxCommitting
	TxAborting
)

func (s Status) String() string {
	switch s {
	case TxActive:
		return "ACTIVE"
	case TxCommitting:
		return "COMMITTING"
	case TxAborting:
		return "ABORTING"
	default:
		return "UNKNOWN"
	}
}

// Stats counts what the context has done since it was created.
type Stats struct {
	Commits       int
	Rollbacks     int
	UnitsWritten  int
	UnitsDiscard  int
	LastCommitDur time.Duration
}

// Context is a connection's transaction room. Add, Commit, Rollback and
// RollbackTo are its only mutating entry points; all of them are guarded by
// one mutex so a connection may be shared between goroutines.
type Context struct {
	mutex    sync.Mutex
	owner    string
	locks    *lock.Manager
	commitMu *sync.Mutex // serializes commits of one database

	status  Status
	entries []*Entry
	chains  map[RowKey][]*Entry

	afterCommit []func() error
	stats       Stats
	log         *slog.Logger
}

// NewContext creates an empty transaction context for owner. commitMu is
// shared by every connection of a database.
func NewContext(owner string, locks *lock.Manager, commitMu *sync.Mutex) *Context {
	return &Context{
		owner:    owner,
		locks:    locks,
		commitMu: commitMu,
		chains:   make(map[RowKey][]*Entry),
		log:      logging.WithConnection(owner),
	}
}

// Owner returns the identity locks are held under.
func (c *Context) Owner() string { return c.owner }

// Add appends e to the pending list, acquiring its lock first. When the lock
// is unavailable nothing is added.
func (c *Context) Add(e *Entry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e.LockLevel != lock.None {
		prev, err := c.locks.Acquire(c.owner, e.Lock, e.LockLevel)
		if err != nil {
			return err
		}
		e.prevLevel = prev
	}

	c.entries = append(c.entries, e)
	if e.Row != nil {
		c.chains[*e.Row] = append(c.chains[*e.Row], e)
	}
	return nil
}

// Lock acquires a lock that is held until the transaction ends or rolls
// back past this point. Used for read locks and table locks.
func (c *Context) Lock(res lock.Resource, level lock.Level) error {
	return c.Add(&Entry{Lock: res, LockLevel: level})
}

// AfterCommit registers fn to run after a successful commit, before the
// touched files are synced. Callbacks run once and are then forgotten.
func (c *Context) AfterCommit(fn func() error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.afterCommit = append(c.afterCommit, fn)
}

// Latest returns the unit of the newest version of row, or nil.
func (c *Context) Latest(row RowKey) Unit {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	chain := c.chains[row]
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Unit != nil {
			return chain[i].Unit
		}
	}
	return nil
}

// Units returns the units of every pending row entry of table, oldest first.
func (c *Context) Units(table string) []Unit {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var out []Unit
	for _, e := range c.entries {
		if e.Unit != nil && e.Row != nil && e.Row.Table == table {
			out = append(out, e.Unit)
		}
	}
	return out
}

// Pending returns the number of entries in the pending list.
func (c *Context) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Savepoint returns a watermark that RollbackTo can return to.
func (c *Context) Savepoint() int {
	return c.Pending()
}

// Stats returns a copy of the context's counters.
func (c *Context) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stats
}

// RollbackTo discards every entry added after savepoint, newest first,
// restoring each entry's lock to its previous level.
func (c *Context) RollbackTo(savepoint int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if savepoint < 0 || savepoint > len(c.entries) {
		return dberror.InvalidArgument("savepoint %d outside [0, %d]", savepoint, len(c.entries))
	}
	err := c.discardFrom(savepoint)
	c.log.Debug("rolled back to savepoint", "savepoint", savepoint)
	return err
}

// Rollback discards the whole pending list and releases every lock.
func (c *Context) Rollback() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.status = TxAborting
	n := len(c.entries)
	err := c.discardFrom(0)
	c.locks.ReleaseAll(c.owner)
	c.afterCommit = nil
	c.status = TxActive
	c.stats.Rollbacks++
	if n > 0 {
		c.log.Info("transaction rolled back", "entries", n)
	}
	return err
}

// discardFrom rolls back entries[from:] in reverse order. Every entry is
// processed even when some fail; the failures are joined.
func (c *Context) discardFrom(from int) error {
	var errs []error
	for i := len(c.entries) - 1; i >= from; i-- {
		e := c.entries[i]
		if e.Unit != nil {
			if err := e.Unit.Rollback(); err != nil {
				errs = append(errs, err)
			}
			c.stats.UnitsDiscard++
		}
		if e.Discard != nil {
			e.Discard()
		}
		if e.LockLevel != lock.None {
			c.locks.Restore(c.owner, e.Lock, e.prevLevel)
		}
		if e.Row != nil {
			chain := c.chains[*e.Row]
			if chain = chain[:len(chain)-1]; len(chain) == 0 {
				delete(c.chains, *e.Row)
			} else {
				c.chains[*e.Row] = chain
			}
		}
		c.entries[i] = nil
	}
	c.entries = c.entries[:from]
	return errors.Join(errs...)
}

func (c *Context) isLatest(e *Entry) bool {
	if e.Row == nil {
		return true
	}
	chain := c.chains[*e.Row]
	return chain[len(chain)-1] == e
}

func (c *Context) reset() {
	c.entries = nil
	c.chains = make(map[RowKey][]*Entry)
	c.afterCommit = nil
	c.locks.ReleaseAll(c.owner)
}

// Commit makes every pending change durable:
//
//  1. every Validate hook runs; any failure aborts before writing
//  2. the latest version of each row and every row-less unit is written in
//     list order; superseded versions are discarded
//  3. Finish hooks run in list order
//  4. AfterCommit callbacks run
//  5. every touched file is synced, then all locks are released
//
// A failure in steps 1 to 3 undoes what was written, rolls the whole
// transaction back and returns the error. Failures in steps 4 and 5 are
// returned after the transaction has been committed.
func (c *Context) Commit() error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.entries) == 0 && len(c.afterCommit) == 0 {
		c.locks.ReleaseAll(c.owner)
		return nil
	}

	start := time.Now()
	c.status = TxCommitting
	defer func() { c.status = TxActive }()

	if err := c.validate(); err != nil {
		return c.abort(err, nil, nil)
	}

	written, err := c.write()
	if err != nil {
		return c.abort(err, written, nil)
	}

	finished, err := c.finish()
	if err != nil {
		return c.abort(err, written, finished)
	}

	files := make(map[*storage.File]struct{})
	for _, e := range written {
		if fu, ok := e.Unit.(fileUnit); ok {
			files[fu.File()] = struct{}{}
		}
	}

	var errs []error
	for _, fn := range c.afterCommit {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}

	n := len(c.entries)
	c.reset()

	if err := syncFiles(files); err != nil {
		errs = append(errs, err)
	}

	c.stats.Commits++
	c.stats.UnitsWritten += len(written)
	c.stats.LastCommitDur = time.Since(start)
	c.log.Info("transaction committed", "entries", n, "written", len(written),
		"files", len(files), "duration", c.stats.LastCommitDur)
	return errors.Join(errs...)
}

func (c *Context) validate() error {
	for _, e := range c.entries {
		if e.Validate == nil {
			continue
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) write() ([]*Entry, error) {
	written := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Unit == nil {
			continue
		}
		if !c.isLatest(e) {
			if err := e.Unit.Rollback(); err != nil {
				return written, err
			}
			continue
		}
		if err := e.Unit.Commit(); err != nil {
			return written, err
		}
		written = append(written, e)
	}
	return written, nil
}

func (c *Context) finish() ([]*Entry, error) {
	var finished []*Entry
	for _, e := range c.entries {
		if e.Finish == nil {
			continue
		}
		if err := e.Finish(); err != nil {
			return finished, err
		}
		finished = append(finished, e)
	}
	return finished, nil
}

// abort reverts finished hooks and written units in reverse order and rolls
// the whole transaction back. Secondary failures are logged; cause is
// returned.
func (c *Context) abort(cause error, written, finished []*Entry) error {
	c.status = TxAborting
	for i := len(finished) - 1; i >= 0; i-- {
		if finished[i].Revert != nil {
			finished[i].Revert()
		}
	}
	for i := len(written) - 1; i >= 0; i-- {
		if err := written[i].Unit.Undo(); err != nil {
			c.log.Error("undo after failed commit", "error", err)
		}
	}
	if err := c.discardFrom(0); err != nil {
		c.log.Error("rollback after failed commit", "error", err)
	}
	c.reset()
	c.stats.Rollbacks++
	c.log.Warn("commit failed, transaction rolled back", "error", cause)
	return cause
}

// syncFiles fsyncs every file in parallel.
func syncFiles(files map[*storage.File]struct{}) error {
	var g errgroup.Group
	for f := range files {
		g.Go(f.Sync)
	}
	return g.Wait()
}
