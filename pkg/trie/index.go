// Package trie implements the digit-trie index: an ordered map from encoded
// multi-column keys to row offsets, kept in memory for transient use or
// persisted to its own file for declared table indexes.
package trie

import (
	"strings"
	"sync"

	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
	"cursordb/pkg/types"
)

// Index maps keys of one or more columns to row offsets. A unique index holds
// exactly one offset per full key; a non-unique index keeps every offset of a
// key in insertion order.
type Index struct {
	mu       sync.Mutex
	name     string
	unique   bool
	keyTypes []types.Type
	root     *node
	store    *fileStore // nil for transient indexes
	changes  uint64     // bumped by every AddValues and RemoveValue
}

// NewIndex creates a transient in-memory index. keyTypes may be nil, in which
// case each column takes the type of the first non-NULL value added to it.
func NewIndex(name string, unique bool, columns int, keyTypes []types.Type) *Index {
	kt := make([]types.Type, columns)
	for i := range kt {
		kt[i] = unknownType
		if i < len(keyTypes) {
			kt[i] = keyTypes[i]
		}
	}
	return &Index{
		name:     name,
		unique:   unique,
		keyTypes: kt,
		root:     newNode(RootDigit),
	}
}

// Create makes a new, empty index file at path.
func Create(path, name string, unique bool, keyTypes []types.Type) (*Index, error) {
	st, err := createStore(path, unique)
	if err != nil {
		return nil, err
	}
	logging.WithIndex(name).Info("index file created", "path", path, "unique", unique)
	return &Index{
		name:     name,
		unique:   unique,
		keyTypes: append([]types.Type(nil), keyTypes...),
		root:     st.root,
		store:    st,
	}, nil
}

// Open reads the header and root of an existing index file. Everything else
// is loaded lazily.
func Open(path, name string, keyTypes []types.Type) (*Index, error) {
	st, unique, err := openStore(path)
	if err != nil {
		return nil, err
	}
	return &Index{
		name:     name,
		unique:   unique,
		keyTypes: append([]types.Type(nil), keyTypes...),
		root:     st.root,
		store:    st,
	}, nil
}

// Name returns the index name.
func (ix *Index) Name() string { return ix.name }

// IsUnique reports whether the index rejects duplicate keys.
func (ix *Index) IsUnique() bool { return ix.unique }

// Columns returns the number of key columns.
func (ix *Index) Columns() int { return len(ix.keyTypes) }

func (ix *Index) ensureLoaded(n *node) error {
	if ix.store == nil {
		return nil
	}
	return ix.store.ensureLoaded(n)
}

// encodeKeys encodes one key per column. ok is false when some value can
// never match a stored key of its column.
func (ix *Index) encodeKeys(keys []types.Field, learn bool) ([][]uint16, bool, error) {
	if len(keys) > len(ix.keyTypes) {
		return nil, false, dberror.InvalidArgument("index %s has %d columns, got %d keys",
			ix.name, len(ix.keyTypes), len(keys))
	}
	out := make([][]uint16, len(keys))
	for i, k := range keys {
		if learn && k != nil && ix.keyTypes[i] == unknownType {
			ix.keyTypes[i] = k.Type()
		}
		units, ok, err := encodeKey(k, ix.keyTypes[i])
		if err != nil || !ok {
			return nil, ok, err
		}
		out[i] = units
	}
	return out, true, nil
}

// AddValues stores rowOffset under the key formed by keys, one value per
// index column. On a unique index a key that is already present fails with a
// duplicate-key error and leaves the index unchanged.
func (ix *Index) AddValues(rowOffset int64, keys []types.Field) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(keys) != len(ix.keyTypes) {
		return dberror.InvalidArgument("index %s has %d columns, got %d keys",
			ix.name, len(ix.keyTypes), len(keys))
	}
	if ix.unique {
		found, err := ix.lookupLocked(keys)
		if err != nil {
			return err
		}
		if found != nil {
			return dberror.DuplicateKey(ix.name, formatKeys(keys))
		}
	}

	encoded, ok, err := ix.encodeKeys(keys, true)
	if err != nil {
		return err
	}
	if !ok {
		return dberror.Conversion(formatKeys(keys), "index key")
	}

	ix.changes++
	n := ix.root
	for col, units := range encoded {
		t, err := ix.descend(n, units)
		if err != nil {
			return err
		}

		if col < len(encoded)-1 {
			switch t.kind {
			case valueNone:
				t.kind = valueNested
				t.nested = newNode(RootDigit)
			case valueNested:
				if err := ix.ensureLoaded(t); err != nil {
					return err
				}
			default:
				return dberror.Corruption(ix.name, "row value found where column %d expects a nested root", col+1)
			}
			t.dirty = true
			n = t.nested
			continue
		}

		switch {
		case t.kind == valueNested:
			return dberror.Corruption(ix.name, "nested root found at the last key column")
		case ix.unique && t.kind != valueNone:
			return dberror.DuplicateKey(ix.name, formatKeys(keys))
		case ix.unique:
			t.kind, t.single = valueSingle, rowOffset
		case t.kind == valueSingle:
			t.kind, t.list = valueList, []int64{t.single, rowOffset}
		default:
			t.kind = valueList
			t.list = append(t.list, rowOffset)
		}
		t.dirty = true
	}
	return nil
}

// descend walks from n along units, creating nodes as needed, and returns
// the terminal node of the key. Every node on the path is marked dirty.
func (ix *Index) descend(n *node, units []uint16) (*node, error) {
	i := 0
	for {
		if err := ix.ensureLoaded(n); err != nil {
			return nil, err
		}
		n.dirty = true

		if len(n.remainder) > 0 {
			if unitsEqual(units[i:], n.remainder) {
				return n, nil
			}
			n.moveRemainderValue()
		}
		if i == len(units) {
			return n, nil
		}

		c := n.child(units[i])
		if c == nil {
			c = newNode(units[i])
			if rest := units[i+1:]; len(rest) > 0 {
				c.remainder = append([]uint16(nil), rest...)
			}
			n.insertChild(c)
			return c, nil
		}
		n = c
		i++
	}
}

// lookup walks from n along units without modifying the trie.
func (ix *Index) lookup(n *node, units []uint16) (*node, error) {
	i := 0
	for {
		if err := ix.ensureLoaded(n); err != nil {
			return nil, err
		}
		if len(n.remainder) > 0 {
			if unitsEqual(units[i:], n.remainder) {
				return n, nil
			}
			return nil, nil
		}
		if i == len(units) {
			return n, nil
		}
		c := n.child(units[i])
		if c == nil {
			return nil, nil
		}
		n = c
		i++
	}
}

// terminal resolves keys (a prefix of the index columns) to the node where
// the last given key ends, or nil.
func (ix *Index) terminal(keys []types.Field) (*node, error) {
	encoded, ok, err := ix.encodeKeys(keys, false)
	if err != nil || !ok {
		return nil, err
	}

	n := ix.root
	var t *node
	for col, units := range encoded {
		t, err = ix.lookup(n, units)
		if err != nil || t == nil || !t.hasValue() {
			return nil, err
		}
		if col < len(encoded)-1 {
			if t.kind != valueNested {
				return nil, nil
			}
			if err := ix.ensureLoaded(t); err != nil {
				return nil, err
			}
			n = t.nested
		}
	}
	return t, nil
}

// FindRows returns the row offsets stored under keys: nil when the key is
// absent, one offset for a unique index, or every duplicate in insertion
// order. With prefix set, keys may cover only the leading index columns and
// every offset below that prefix is returned in ascending key order.
func (ix *Index) FindRows(keys []types.Field, prefix bool) ([]int64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(keys) < len(ix.keyTypes) && !prefix {
		return nil, dberror.InvalidArgument("index %s needs %d keys for an exact lookup, got %d",
			ix.name, len(ix.keyTypes), len(keys))
	}
	if len(keys) == len(ix.keyTypes) {
		return ix.lookupLocked(keys)
	}

	n := ix.root
	if len(keys) > 0 {
		t, err := ix.terminal(keys)
		if err != nil || t == nil {
			return nil, err
		}
		if t.kind != valueNested {
			return nil, nil
		}
		if err := ix.ensureLoaded(t); err != nil {
			return nil, err
		}
		n = t.nested
	}

	var out []int64
	if err := ix.collect(n, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (ix *Index) lookupLocked(keys []types.Field) ([]int64, error) {
	t, err := ix.terminal(keys)
	if err != nil || t == nil {
		return nil, err
	}
	return t.values(), nil
}

// collect appends every offset below n in ascending key order.
func (ix *Index) collect(n *node, out *[]int64) error {
	if err := ix.ensureLoaded(n); err != nil {
		return err
	}
	if n.kind == valueNested {
		if err := ix.collect(n.nested, out); err != nil {
			return err
		}
	} else {
		*out = append(*out, n.values()...)
	}
	for _, c := range n.children {
		if err := ix.collect(c, out); err != nil {
			return err
		}
	}
	return nil
}

// RemoveValue deletes rowOffset from the key formed by keys and prunes nodes
// left empty. It reports whether the offset was present.
func (ix *Index) RemoveValue(rowOffset int64, keys []types.Field) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(keys) != len(ix.keyTypes) {
		return false, dberror.InvalidArgument("index %s has %d columns, got %d keys",
			ix.name, len(ix.keyTypes), len(keys))
	}
	encoded, ok, err := ix.encodeKeys(keys, false)
	if err != nil || !ok {
		return false, err
	}
	ix.changes++
	return ix.remove(ix.root, encoded, rowOffset)
}

func (ix *Index) remove(n *node, encoded [][]uint16, rowOffset int64) (bool, error) {
	units := encoded[0]

	path := []*node{n}
	for i := 0; ; {
		if err := ix.ensureLoaded(n); err != nil {
			return false, err
		}
		if len(n.remainder) > 0 {
			if !unitsEqual(units[i:], n.remainder) {
				return false, nil
			}
			break
		}
		if i == len(units) {
			break
		}
		c := n.child(units[i])
		if c == nil {
			return false, nil
		}
		path = append(path, c)
		n = c
		i++
	}

	t := path[len(path)-1]
	var removed bool
	if len(encoded) > 1 {
		if t.kind != valueNested {
			return false, nil
		}
		if err := ix.ensureLoaded(t); err != nil {
			return false, err
		}
		var err error
		if removed, err = ix.remove(t.nested, encoded[1:], rowOffset); err != nil || !removed {
			return removed, err
		}
		if t.nested.isEmpty() {
			t.clearValue()
			t.remainder = nil
		}
	} else {
		removed = t.removeOffset(rowOffset)
		if !removed {
			return false, nil
		}
	}

	for _, p := range path {
		p.dirty = true
	}
	for k := len(path) - 1; k > 0; k-- {
		c := path[k]
		if !c.isEmpty() {
			break
		}
		path[k-1].removeChild(c.digit)
		if ix.store != nil && c.offset != unsaved {
			delete(ix.store.cache, c.offset)
		}
	}
	return true, nil
}

func (n *node) removeOffset(rowOffset int64) bool {
	switch n.kind {
	case valueSingle:
		if n.single != rowOffset {
			return false
		}
		n.clearValue()
		n.remainder = nil
		return true
	case valueList:
		for i, v := range n.list {
			if v != rowOffset {
				continue
			}
			n.list = append(n.list[:i], n.list[i+1:]...)
			if len(n.list) == 0 {
				n.clearValue()
				n.remainder = nil
			}
			return true
		}
	}
	return false
}

// Flush writes every modified node to the index file and syncs it.
// Transient indexes have nothing to flush.
func (ix *Index) Flush() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.store == nil {
		return nil
	}
	return ix.store.flush()
}

// Close flushes and closes the index file.
func (ix *Index) Close() error {
	if err := ix.Flush(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.store == nil {
		return nil
	}
	return ix.store.close()
}

// Stats describes the shape of an index.
type Stats struct {
	Nodes      int
	Keys       int
	Offsets    int
	MaxDepth   int
	Compressed int
}

// Stats walks the whole index, loading every node of a file-backed index.
func (ix *Index) Stats() (Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var s Stats
	err := ix.walkStats(ix.root, 0, &s)
	return s, err
}

func (ix *Index) walkStats(n *node, depth int, s *Stats) error {
	if err := ix.ensureLoaded(n); err != nil {
		return err
	}
	s.Nodes++
	if depth > s.MaxDepth {
		s.MaxDepth = depth
	}
	if len(n.remainder) > 0 {
		s.Compressed++
	}
	switch n.kind {
	case valueSingle:
		s.Keys++
		s.Offsets++
	case valueList:
		s.Keys++
		s.Offsets += len(n.list)
	case valueNested:
		if err := ix.walkStats(n.nested, depth+1, s); err != nil {
			return err
		}
	}
	for _, c := range n.children {
		if err := ix.walkStats(c, depth+1, s); err != nil {
			return err
		}
	}
	return nil
}

func formatKeys(keys []types.Field) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k == nil {
			parts[i] = "NULL"
		} else {
			parts[i] = k.String()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
