package logging

import (
	"log/slog"
)

// WithConnection creates a logger carrying the connection id.
//
// Example:
//
//	log := logging.WithConnection(conn.ID())
//	log.Debug("statement rolled back", "savepoint", sp)
func WithConnection(connID string) *slog.Logger {
	return GetLogger().With("conn_id", connID)
}

// WithTable creates a logger with table context.
func WithTable(tableName string) *slog.Logger {
	return GetLogger().With("table", tableName)
}

// WithIndex creates a logger with index context.
//
// Example:
//
//	log := logging.WithIndex("users_email")
//	log.Debug("flush", "dirty_nodes", n)
func WithIndex(indexName string) *slog.Logger {
	return GetLogger().With("index", indexName)
}

// WithFile creates a logger with file context.
// Useful for page store and trie file operations.
func WithFile(path string) *slog.Logger {
	return GetLogger().With("file", path)
}

// WithLock creates a logger with lock context.
func WithLock(owner string, resource string) *slog.Logger {
	return GetLogger().With("owner", owner, "resource", resource)
}

// WithComponent creates a logger with component/subsystem context.
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with error context.
//
// Example:
//
//	log := logging.WithError(err)
//	log.Error("cleanup failed", "table", name)
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
