package iterator

// PositionTable assigns dense row positions to composite bookmarks, such as
// the pair of child positions of a join row. The same key always maps to the
// same position until Reset.
type PositionTable[T comparable] struct {
	entries []T
	index   map[T]int64
}

// NewPositionTable returns an empty table.
func NewPositionTable[T comparable]() *PositionTable[T] {
	return &PositionTable[T]{index: make(map[T]int64)}
}

// Put returns the position of key, assigning a new one on first sight.
func (p *PositionTable[T]) Put(key T) int64 {
	if pos, ok := p.index[key]; ok {
		return pos
	}
	pos := int64(len(p.entries))
	p.entries = append(p.entries, key)
	p.index[key] = pos
	return pos
}

// Get returns the key stored under pos.
func (p *PositionTable[T]) Get(pos int64) (T, bool) {
	if pos < 0 || pos >= int64(len(p.entries)) {
		var zero T
		return zero, false
	}
	return p.entries[pos], true
}

// Len returns the number of positions assigned.
func (p *PositionTable[T]) Len() int { return len(p.entries) }

// Reset forgets every position.
func (p *PositionTable[T]) Reset() {
	p.entries = p.entries[:0]
	clear(p.index)
}
