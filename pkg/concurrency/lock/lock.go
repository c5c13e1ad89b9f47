// Package lock implements the connection-level lock manager.
//
// # Overview
//
// Locks are taken on rows and on whole tables. Levels are ordered
//
//	None < Insert < Read < Write < Table
//
// and a connection that already holds a lock on a resource escalates it in
// place when it asks for a stronger level. Nothing ever waits: a request that
// conflicts with another connection's lock fails immediately with a
// LOCK_CONFLICT error, so there is no wait queue and no deadlock detection.
//
// # Compatibility
//
// Two connections may hold the same row only when both hold Read. A Table
// lock excludes every lock of any other connection on the table and its rows.
package lock

import (
	"fmt"
	"time"
)

// Level is the strength of a lock.
type Level int

const (
	None Level = iota
	Insert
	Read
	Write
	Table
)

func (l Level) String() string {
	switch l {
	case None:
		return "NONE"
	case Insert:
		return "INSERT"
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Table:
		return "TABLE"
	default:
		return "UNKNOWN"
	}
}

// TableLevel is the Row value of a resource that denotes the whole table.
const TableLevel int64 = -1

// Resource identifies a lockable row or table.
type Resource struct {
	Table string
	Row   int64
}

// TableResource returns the resource covering a whole table.
func TableResource(table string) Resource {
	return Resource{Table: table, Row: TableLevel}
}

func (r Resource) String() string {
	if r.Row == TableLevel {
		return "table " + r.Table
	}
	return fmt.Sprintf("%s#%d", r.Table, r.Row)
}

// Lock is one grant on a resource.
type Lock struct {
	Owner     string
	Level     Level
	GrantTime time.Time
}

func newLock(owner string, level Level) *Lock {
	return &Lock{Owner: owner, Level: level, GrantTime: time.Now()}
}

// compatible reports whether a grant of held to one owner allows a grant of
// req to a different owner on the same row.
func compatible(held, req Level) bool {
	return held == Read && req == Read
}
