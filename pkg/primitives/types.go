package primitives

// FileID identifies a file by the FNV-1a hash of its path.
type FileID uint64

// FileOffset is a byte offset within a table or index file.
type FileOffset = int64

// RowPosition is an opaque, round-trippable bookmark for a logical row.
// For a table cursor it is either the file offset of the row record or a
// tagged index into the connection's insert buffer.
type RowPosition = int64

// HashCode represents a hash value used for quick comparisons.
type HashCode uint64

const (
	// UnassignedOffset marks a page whose location is chosen on commit (append).
	UnassignedOffset FileOffset = -1

	// NoPosition is returned by cursors that are not on a row.
	NoPosition RowPosition = -1

	// insertTag marks row positions that point into an insert buffer rather
	// than at a committed record. Bit 62 keeps tagged positions non-negative.
	insertTag RowPosition = 1 << 62
)

// TagInsert converts an insert-buffer sequence number into a row position.
func TagInsert(seq int64) RowPosition {
	return insertTag | RowPosition(seq)
}

// IsInsertTagged reports whether pos refers to an uncommitted, buffered row.
func IsInsertTagged(pos RowPosition) bool {
	return pos >= 0 && pos&insertTag != 0
}

// InsertSeq returns the insert-buffer sequence number of a tagged position.
func InsertSeq(pos RowPosition) int64 {
	return int64(pos &^ insertTag)
}
