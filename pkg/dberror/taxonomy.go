package dberror

import "fmt"

// DuplicateKey reports a unique index violation.
func DuplicateKey(index string, key any) *DBError {
	return New(ErrCategoryUser, CodeDuplicateKey, "duplicate key").
		WithDetail("index %q already contains key %v", index, key)
}

// Corruption reports an unreadable persisted structure.
func Corruption(file string, format string, args ...any) *DBError {
	e := New(ErrCategoryData, CodeCorruption, "corrupted file "+file)
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// NoCurrentRow reports a cursor access outside the on-row state.
func NoCurrentRow(operation string) *DBError {
	e := New(ErrCategoryUser, CodeNoCurrentRow, "no current row")
	e.Operation = operation
	return e
}

// ReadOnly reports a mutation attempted through a non-writable cursor.
func ReadOnly(operation string) *DBError {
	e := New(ErrCategoryUser, CodeReadOnly, "read-only result set")
	e.Operation = operation
	return e
}

// LockConflict reports a lock that another connection holds.
func LockConflict(resource string, holder string) *DBError {
	return New(ErrCategoryConcurrency, CodeLockConflict, "lock unavailable").
		WithDetail("%s is locked by %s", resource, holder)
}

// IOFailure wraps an operating system error from file access.
func IOFailure(operation string, cause error) *DBError {
	e := New(ErrCategorySystem, CodeIOFailure, "i/o failure")
	e.Operation = operation
	e.Cause = cause
	return e
}

// NotInGroupBy reports a column used outside aggregates and the GROUP BY list.
func NotInGroupBy(column string) *DBError {
	return New(ErrCategoryUser, CodeNotInGroupBy,
		"expression is not part of an aggregate or the GROUP BY list").
		WithDetail("%s", column)
}

// Conversion reports a value that cannot be converted to the requested type.
func Conversion(value any, target string) *DBError {
	return New(ErrCategoryUser, CodeConversion, "conversion failed").
		WithDetail("cannot convert %v to %s", value, target)
}

// InvalidArgument reports a malformed request.
func InvalidArgument(format string, args ...any) *DBError {
	e := New(ErrCategoryUser, CodeInvalidArgument, "invalid argument")
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// NotFound reports a missing table, index or column.
func NotFound(kind, name string) *DBError {
	return New(ErrCategoryUser, CodeNotFound, kind+" not found").WithDetail("%s", name)
}
