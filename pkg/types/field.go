package types

import (
	"io"

	"cursordb/pkg/primitives"
)

// Field is a non-NULL column value. SQL NULL is represented by a nil Field
// everywhere in the engine.
type Field interface {
	Serialize(w io.Writer) error

	Compare(op primitives.Predicate, other Field) (bool, error)

	Type() Type

	String() string

	Equals(other Field) bool

	Hash() (primitives.HashCode, error)

	Length() uint32
}
