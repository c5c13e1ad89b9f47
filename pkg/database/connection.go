package database

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"cursordb/pkg/concurrency/transaction"
	"cursordb/pkg/config"
	"cursordb/pkg/dberror"
	"cursordb/pkg/execution/join"
	"cursordb/pkg/expr"
	"cursordb/pkg/logging"
)

// StatementError wraps the failure of one statement. The statement's
// changes have been rolled back; earlier changes of the transaction are
// kept.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Connection is a session on a database with its own transaction. It may be
// shared between goroutines; statements of one connection run one at a
// time.
type Connection struct {
	ID string

	db  *Database
	ctx *transaction.Context

	mu         sync.Mutex
	autoCommit bool
	isolation  config.Isolation
	planner    join.Planner
	open       int // result sets not closed yet
	closed     bool

	log *slog.Logger
}

// Connect opens a connection with the database's default auto-commit and
// isolation settings.
func (db *Database) Connect() *Connection {
	id := uuid.NewString()
	c := &Connection{
		ID:         id,
		db:         db,
		ctx:        transaction.NewContext(id, db.locks, &db.commitMu),
		autoCommit: db.cfg.AutoCommit,
		isolation:  db.cfg.Isolation,
		log:        logging.WithConnection(id),
	}
	c.log.Debug("connection opened", "auto_commit", c.autoCommit, "isolation", c.isolation)
	return c
}

// Database returns the database the connection belongs to.
func (c *Connection) Database() *Database { return c.db }

// Context returns the connection's transaction context.
func (c *Connection) Context() *transaction.Context { return c.ctx }

// Isolation returns the isolation level of the connection.
func (c *Connection) Isolation() config.Isolation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isolation
}

// SetIsolation changes the isolation level used by later statements.
func (c *Connection) SetIsolation(iso config.Isolation) error {
	if iso != config.ReadCommitted && iso != config.RepeatableRead {
		return dberror.InvalidArgument("unknown isolation level %q", iso)
	}
	c.mu.Lock()
	c.isolation = iso
	c.mu.Unlock()
	return nil
}

// SetPlanner replaces the join planner, for instance to force nested loop
// joins.
func (c *Connection) SetPlanner(p join.Planner) {
	c.mu.Lock()
	c.planner = p
	c.mu.Unlock()
}

// AutoCommit reports whether every statement commits on success.
func (c *Connection) AutoCommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoCommit
}

// SetAutoCommit switches auto-commit mode. Turning it on commits the
// pending transaction.
func (c *Connection) SetAutoCommit(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.autoCommit == on {
		return nil
	}
	c.autoCommit = on
	if on {
		return c.commitLocked()
	}
	return nil
}

// Exec runs a statement and returns the number of rows it changed.
func (c *Connection) Exec(stmt Statement) (int, error) {
	var n int
	err := c.run(stmt.Kind(), func() error {
		var err error
		n, err = stmt.exec(c)
		return err
	})
	return n, err
}

// Query opens a scrollable result set over src. In auto-commit mode the
// connection commits when its last result set is closed.
func (c *Connection) Query(src Source) (*ResultSet, error) {
	var rs *ResultSet
	err := c.run("SELECT", func() error {
		s, err := openScrollable(c, src)
		if err != nil {
			return err
		}
		if err := s.Execute(); err != nil {
			return err
		}
		c.open++
		rs = &ResultSet{RowSource: s, conn: c}
		return nil
	})
	return rs, err
}

// In builds "operand IN (sub)". The subquery runs once, now, in the
// connection's transaction.
func (c *Connection) In(operand expr.Expr, sub Source) (expr.Expr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, err := sub.open(c)
	if err != nil {
		return nil, err
	}
	return expr.NewInIndex(operand, src)
}

// run executes fn as one statement: a failure rolls back to the savepoint
// taken before fn and is wrapped in a StatementError; a success commits in
// auto-commit mode unless result sets are still open.
func (c *Connection) run(kind string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &StatementError{Statement: kind, Err: dberror.InvalidArgument("connection is closed")}
	}

	sp := c.ctx.Savepoint()
	if err := fn(); err != nil {
		if rbErr := c.ctx.RollbackTo(sp); rbErr != nil {
			c.log.Error("statement rollback failed", "statement", kind, "error", rbErr)
		}
		c.db.recordError()
		c.log.Debug("statement failed", "statement", kind, "error", err)
		return &StatementError{Statement: kind, Err: err}
	}
	c.db.recordSuccess()

	if c.autoCommit && c.open == 0 {
		if err := c.commitLocked(); err != nil {
			c.db.recordError()
			return &StatementError{Statement: kind, Err: err}
		}
	}
	return nil
}

// Commit makes the pending changes durable and visible to other
// connections.
func (c *Connection) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked()
}

func (c *Connection) commitLocked() error {
	if c.ctx.Pending() > 0 {
		c.db.recordTransaction()
	}
	return c.ctx.Commit()
}

// Rollback discards every pending change.
func (c *Connection) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx.Rollback()
}

// closeResult is called when a result set of c is closed.
func (c *Connection) closeResult() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open > 0 {
		c.open--
	}
	if c.autoCommit && c.open == 0 && !c.closed {
		return c.commitLocked()
	}
	return nil
}

// Stats returns the counters of the connection's transaction context.
func (c *Connection) Stats() transaction.Stats {
	return c.ctx.Stats()
}

// Close rolls back whatever is pending and closes the connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.ctx.Rollback()
	c.log.Debug("connection closed")
	if err != nil {
		return fmt.Errorf("closing connection %s: %w", c.ID, err)
	}
	return nil
}
