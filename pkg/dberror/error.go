// Package dberror defines the structured error type shared by every layer of
// the engine, together with the error taxonomy used to decide how a failure
// is reported and whether a statement must be rolled back.
package dberror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryUser represents errors caused by invalid requests: duplicate
	// keys, writes through a read-only cursor, bad GROUP BY lists.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategorySystem represents errors requiring administrator intervention,
	// such as disk failures or missing files.
	ErrCategorySystem

	// ErrCategoryData represents corrupted persisted structures. These are
	// fatal for the affected file and never retried.
	ErrCategoryData

	// ErrCategoryConcurrency represents lock conflicts between connections.
	// Conflicts are reported immediately; nothing waits.
	ErrCategoryConcurrency
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "user"
	case ErrCategorySystem:
		return "system"
	case ErrCategoryData:
		return "data"
	case ErrCategoryConcurrency:
		return "concurrency"
	default:
		return "unknown"
	}
}

// Error codes of the taxonomy.
const (
	CodeDuplicateKey    = "DUPLICATE_KEY"
	CodeCorruption      = "CORRUPTION"
	CodeNoCurrentRow    = "NO_CURRENT_ROW"
	CodeReadOnly        = "READ_ONLY"
	CodeLockConflict    = "LOCK_CONFLICT"
	CodeIOFailure       = "IO_FAILURE"
	CodeNotInGroupBy    = "NOT_IN_GROUP_BY"
	CodeConversion      = "CONVERSION"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeStatementFailed = "STATEMENT_FAILED"
)

// Sentinels for errors.Is. Matching is done on Code only, so any DBError
// carrying the same code matches regardless of message or cause.
var (
	ErrDuplicateKey    = &DBError{Code: CodeDuplicateKey}
	ErrCorruption      = &DBError{Code: CodeCorruption}
	ErrNoCurrentRow    = &DBError{Code: CodeNoCurrentRow}
	ErrReadOnly        = &DBError{Code: CodeReadOnly}
	ErrLockConflict    = &DBError{Code: CodeLockConflict}
	ErrIOFailure       = &DBError{Code: CodeIOFailure}
	ErrNotInGroupBy    = &DBError{Code: CodeNotInGroupBy}
	ErrConversion      = &DBError{Code: CodeConversion}
	ErrInvalidArgument = &DBError{Code: CodeInvalidArgument}
	ErrNotFound        = &DBError{Code: CodeNotFound}
)

// DBError represents a structured database error with rich context information.
type DBError struct {
	// Code is a unique identifier for this error type (e.g. "DUPLICATE_KEY").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance.
	Detail string

	// Operation identifies the operation being performed, e.g. "AddValues".
	Operation string

	// Component identifies where the error originated, e.g. "TrieIndex".
	Component string

	// Cause is the underlying error that triggered this database error.
	Cause error

	// Stack contains the call stack where this error was created.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with database-specific context information.
// If the error already is (or wraps) a DBError, that error is enriched with the
// operation and component when they are not set yet and returned unchanged
// otherwise, so the original code survives repeated wrapping.
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// WithDetail sets the detail text and returns the receiver for chaining.
func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithCause sets the underlying cause and returns the receiver for chaining.
func (e *DBError) WithCause(cause error) *DBError {
	e.Cause = cause
	return e
}

// At records the operation and component and returns the receiver.
func (e *DBError) At(operation, component string) *DBError {
	e.Operation = operation
	e.Component = component
	return e
}

// captureStack skips runtime.Callers, captureStack and the constructor.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error formats as:
// [CODE] Message: Detail (operation: Operation, component: Component) caused by: cause
func (e *DBError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}

	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Component != "" {
			fmt.Fprintf(&b, ", component: %s", e.Component)
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}

	return b.String()
}

// Unwrap returns the underlying cause error.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DBError with the same code.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}

	return b.String()
}

// CodeOf returns the code of the first DBError in err's chain, or "".
func CodeOf(err error) string {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	return ""
}
