package primitives

import (
	"hash/fnv"
)

// Filepath is the on-disk location of a table or index file.
type Filepath string

// Hash returns a stable identifier for the file derived from its path.
func (f Filepath) Hash() FileID {
	h := fnv.New64a()
	h.Write([]byte(f))
	return FileID(h.Sum64())
}

// String returns the path as a plain string.
func (f Filepath) String() string {
	return string(f)
}
