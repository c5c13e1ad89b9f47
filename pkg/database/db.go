// Package database ties tables, transactions and the relational operators
// together: a Database owns the data directory, the catalog and the lock
// manager, and hands out Connections that run statements and queries.
package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"cursordb/pkg/concurrency/lock"
	"cursordb/pkg/config"
	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
	"cursordb/pkg/table"
	"cursordb/pkg/tuple"
)

// Database represents the main database engine that coordinates all components
type Database struct {
	name    string
	dataDir string
	cfg     config.Config

	locks    *lock.Manager
	commitMu sync.Mutex

	mutex       sync.RWMutex
	tables      map[string]*table.Table
	views       map[string]*viewDef
	uncommitted map[string]string // table and index keys created by open transactions, by owner

	stats *DatabaseStats
	log   *slog.Logger
}

// DatabaseStats tracks performance metrics
type DatabaseStats struct {
	QueriesExecuted   int64
	TransactionsCount int64
	ErrorCount        int64
	mutex             sync.RWMutex
}

// QueryResult represents the result of a statement or a fully read query,
// ready for display
type QueryResult struct {
	Success      bool
	Columns      []string
	Rows         [][]string
	RowsAffected int
	Message      string
	Error        error
}

// DatabaseInfo contains database metadata
type DatabaseInfo struct {
	Name              string
	Tables            []string
	TableCount        int
	QueriesExecuted   int64
	TransactionsCount int64
	ErrorCount        int64
}

func tableKey(name string) string { return strings.ToLower(name) }

func indexKey(tableName, index string) string {
	return tableKey(tableName) + "." + strings.ToLower(index)
}

// Open opens the database in cfg.DataDir, creating the directory when it
// does not exist. Every table of the catalog is opened and the index files
// are attached in parallel.
func Open(cfg config.Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, dberror.IOFailure("OpenDatabase", err)
	}

	db := &Database{
		name:        filepath.Base(cfg.DataDir),
		dataDir:     cfg.DataDir,
		cfg:         cfg,
		locks:       lock.NewManager(),
		tables:      make(map[string]*table.Table),
		views:       make(map[string]*viewDef),
		uncommitted: make(map[string]string),
		stats:       &DatabaseStats{},
		log:         logging.WithComponent("database"),
	}
	if err := db.loadExistingTables(); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to load existing tables: %w", err), db.Close())
	}
	db.log.Info("database opened", "dir", db.dataDir, "tables", len(db.tables))
	return db, nil
}

// loadExistingTables opens the tables listed in the catalog
func (db *Database) loadExistingTables() error {
	cat, err := loadCatalog(db.dataDir)
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, meta := range cat.Tables {
		td, err := tuple.NewTupleDesc(meta.Columns)
		if err != nil {
			return fmt.Errorf("table %s: %w", meta.Name, err)
		}
		t, err := table.Open(db.dataDir, meta.Name, td)
		if err != nil {
			return fmt.Errorf("table %s: %w", meta.Name, err)
		}
		db.tables[tableKey(meta.Name)] = t

		for _, def := range meta.Indexes {
			g.Go(func() error {
				if err := t.OpenIndex(def); err != nil {
					return fmt.Errorf("index %s on %s: %w", def.Name, meta.Name, err)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// Name returns the name of the data directory.
func (db *Database) Name() string { return db.name }

// DataDir returns the data directory.
func (db *Database) DataDir() string { return db.dataDir }

// Config returns the configuration the database was opened with.
func (db *Database) Config() config.Config { return db.cfg }

// Table returns the open table called name. Tables created by transactions
// that have not committed yet are not returned.
func (db *Database) Table(name string) (*table.Table, error) {
	return db.lookupTable("", name)
}

// lookupTable returns the table called name as owner sees it: committed
// tables and the ones owner created itself.
func (db *Database) lookupTable(owner, name string) (*table.Table, error) {
	key := tableKey(name)
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	t, ok := db.tables[key]
	if !ok {
		return nil, dberror.NotFound("table", name)
	}
	if by := db.uncommitted[key]; by != "" && by != owner {
		return nil, dberror.NotFound("table", name)
	}
	return t, nil
}

func (db *Database) lookupView(name string) (*viewDef, bool) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	v, ok := db.views[tableKey(name)]
	return v, ok
}

// reserveName claims a table or view name for owner. It fails when the name
// is taken, including by another transaction's uncommitted table.
func (db *Database) reserveName(owner, name string) error {
	key := tableKey(name)
	db.mutex.Lock()
	defer db.mutex.Unlock()
	_, isTable := db.tables[key]
	_, isView := db.views[key]
	if isTable || isView || db.uncommitted[key] != "" {
		return dberror.InvalidArgument("%s already exists", name)
	}
	db.uncommitted[key] = owner
	return nil
}

// reserveIndex hides the index key from the catalog until owner commits.
func (db *Database) reserveIndex(owner, key string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if by := db.uncommitted[key]; by != "" && by != owner {
		return dberror.InvalidArgument("index %s is being created by another transaction", key)
	}
	db.uncommitted[key] = owner
	return nil
}

func (db *Database) register(key string, t *table.Table) {
	db.mutex.Lock()
	db.tables[key] = t
	db.mutex.Unlock()
}

func (db *Database) addView(owner string, v *viewDef) {
	key := tableKey(v.name)
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.uncommitted[key] == owner {
		delete(db.uncommitted, key)
	}
	db.views[key] = v
}

// release forgets owner's claim on key. With drop set, a table registered
// under key is unregistered too.
func (db *Database) release(owner, key string, drop bool) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.uncommitted[key] != owner {
		return
	}
	delete(db.uncommitted, key)
	if drop {
		delete(db.tables, key)
	}
}

// publish makes owner's table or index visible to everyone and persists
// the catalog. It runs after owner's commit.
func (db *Database) publish(owner, key string) error {
	db.release(owner, key, false)
	return db.saveCatalog()
}

// recordError updates error statistics
func (db *Database) recordError() {
	db.stats.mutex.Lock()
	db.stats.ErrorCount++
	db.stats.mutex.Unlock()
}

// recordSuccess updates success statistics
func (db *Database) recordSuccess() {
	db.stats.mutex.Lock()
	db.stats.QueriesExecuted++
	db.stats.mutex.Unlock()
}

func (db *Database) recordTransaction() {
	db.stats.mutex.Lock()
	db.stats.TransactionsCount++
	db.stats.mutex.Unlock()
}

// GetTables returns a list of all tables in the database
func (db *Database) GetTables() []string {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	names := make([]string, 0, len(db.tables))
	for _, t := range db.tables {
		names = append(names, t.Name())
	}
	slices.Sort(names)
	return names
}

// GetStatistics returns current database statistics
func (db *Database) GetStatistics() DatabaseInfo {
	tables := db.GetTables()

	db.stats.mutex.RLock()
	defer db.stats.mutex.RUnlock()
	return DatabaseInfo{
		Name:              db.name,
		Tables:            tables,
		TableCount:        len(tables),
		QueriesExecuted:   db.stats.QueriesExecuted,
		TransactionsCount: db.stats.TransactionsCount,
		ErrorCount:        db.stats.ErrorCount,
	}
}

// Close closes every table. Pending transactions of open connections are
// lost.
func (db *Database) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	var errs []error
	for key, t := range db.tables {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing table %s: %w", t.Name(), err))
		}
		delete(db.tables, key)
	}
	return errors.Join(errs...)
}
