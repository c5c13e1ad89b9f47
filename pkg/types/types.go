package types

import (
	"strings"

	"cursordb/pkg/dberror"
)

// Type is the data-type code of a column.
type Type int

const (
	IntType Type = iota
	FloatType
	StringType
	BoolType
	BytesType
)

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "INT"
	case FloatType:
		return "FLOAT"
	case StringType:
		return "VARCHAR"
	case BoolType:
		return "BOOLEAN"
	case BytesType:
		return "VARBINARY"
	default:
		return "UNKNOWN"
	}
}

// ParseType maps a SQL type name to its Type.
func ParseType(name string) (Type, error) {
	switch strings.ToUpper(name) {
	case "INT", "INTEGER", "BIGINT":
		return IntType, nil
	case "FLOAT", "DOUBLE", "REAL":
		return FloatType, nil
	case "VARCHAR", "STRING", "TEXT":
		return StringType, nil
	case "BOOLEAN", "BOOL":
		return BoolType, nil
	case "VARBINARY", "BYTES", "BLOB":
		return BytesType, nil
	default:
		return 0, dberror.InvalidArgument("unknown type %q", name)
	}
}
