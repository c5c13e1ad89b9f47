package trie

import "slices"

// frame is one level of an index traversal. The items of a node are its own
// value followed by its children in digit order; a descending frame visits
// them in reverse. pos is an item index in visiting order, -1 before the
// first item and items() after the last.
type frame struct {
	n   *node
	col int
	asc bool
	pos int
}

func (f *frame) items() int {
	k := len(f.n.children)
	if f.n.hasValue() {
		k++
	}
	return k
}

// item returns the node's value (child nil) or the child at visiting
// position pos.
func (f *frame) item(pos int) (child *node) {
	j := pos
	if !f.asc {
		j = f.items() - 1 - pos
	}
	if f.n.hasValue() {
		if j == 0 {
			return nil
		}
		j--
	}
	return f.n.children[j]
}

// ScrollStatus walks an index in key order in either direction. Each index
// column can be traversed ascending or descending. Duplicate lists are
// enumerated in insertion order when moving forward and in reverse when
// moving backward.
//
// A ScrollStatus is not safe for concurrent use; it locks its index for the
// duration of each step.
type ScrollStatus struct {
	ix         *Index
	descending []bool
	stack      []frame

	list       []int64
	listPos    int
	listActive bool

	atStart bool
	atEnd   bool
}

// CreateScrollStatus returns a cursor positioned before the first key.
// descending[i] selects the direction of index column i; missing entries
// mean ascending.
func (ix *Index) CreateScrollStatus(descending []bool) *ScrollStatus {
	return &ScrollStatus{
		ix:         ix,
		descending: append([]bool(nil), descending...),
		atStart:    true,
	}
}

// Reset moves the cursor before the first key.
func (s *ScrollStatus) Reset() {
	s.discard()
	s.atStart = true
}

// AfterLast moves the cursor after the last key.
func (s *ScrollStatus) AfterLast() {
	s.discard()
	s.atEnd = true
}

func (s *ScrollStatus) discard() {
	s.stack = s.stack[:0]
	s.list = nil
	s.listActive = false
	s.atStart, s.atEnd = false, false
}

// Mark is a position saved by ScrollStatus.Mark.
type Mark struct {
	changes    uint64
	stack      []frame
	list       []int64
	listPos    int
	listActive bool
	atStart    bool
	atEnd      bool
}

// Mark saves the current position.
func (s *ScrollStatus) Mark() Mark {
	s.ix.mu.Lock()
	defer s.ix.mu.Unlock()
	return Mark{
		changes:    s.ix.changes,
		stack:      slices.Clone(s.stack),
		list:       s.list,
		listPos:    s.listPos,
		listActive: s.listActive,
		atStart:    s.atStart,
		atEnd:      s.atEnd,
	}
}

// Restore moves back to a position saved by Mark. It reports false, and
// leaves the cursor where it was, when the index changed since the mark was
// taken.
func (s *ScrollStatus) Restore(m Mark) bool {
	s.ix.mu.Lock()
	defer s.ix.mu.Unlock()
	if m.changes != s.ix.changes {
		return false
	}
	s.stack = append(s.stack[:0], m.stack...)
	s.list, s.listPos, s.listActive = m.list, m.listPos, m.listActive
	s.atStart, s.atEnd = m.atStart, m.atEnd
	return true
}

// Next returns the next row offset, or false once the index is exhausted.
func (s *ScrollStatus) Next() (int64, bool, error) {
	return s.step(1)
}

// Previous returns the previous row offset, or false once the cursor moved
// before the first key.
func (s *ScrollStatus) Previous() (int64, bool, error) {
	return s.step(-1)
}

func (s *ScrollStatus) push(n *node, col, dir int) error {
	if err := s.ix.ensureLoaded(n); err != nil {
		return err
	}
	f := frame{n: n, col: col, asc: col >= len(s.descending) || !s.descending[col]}
	if dir > 0 {
		f.pos = -1
	} else {
		f.pos = f.items()
	}
	s.stack = append(s.stack, f)
	return nil
}

func (s *ScrollStatus) step(dir int) (int64, bool, error) {
	s.ix.mu.Lock()
	defer s.ix.mu.Unlock()

	switch {
	case s.listActive:
		s.listPos += dir
		if s.listPos >= 0 && s.listPos < len(s.list) {
			return s.list[s.listPos], true, nil
		}
		s.list, s.listActive = nil, false

	case len(s.stack) == 0:
		if (dir > 0 && s.atEnd) || (dir < 0 && s.atStart) {
			return 0, false, nil
		}
		if err := s.push(s.ix.root, 0, dir); err != nil {
			return 0, false, err
		}
		s.atStart, s.atEnd = false, false
	}

	for len(s.stack) > 0 {
		top := &s.stack[len(s.stack)-1]
		top.pos += dir
		if top.pos < 0 || top.pos >= top.items() {
			s.stack = s.stack[:len(s.stack)-1]
			continue
		}

		n, col := top.n, top.col
		child := top.item(top.pos)
		if child != nil {
			if err := s.push(child, col, dir); err != nil {
				return 0, false, err
			}
			continue
		}

		switch n.kind {
		case valueSingle:
			return n.single, true, nil
		case valueList:
			if len(n.list) == 0 {
				continue
			}
			s.list, s.listActive = n.list, true
			if dir > 0 {
				s.listPos = 0
			} else {
				s.listPos = len(n.list) - 1
			}
			return s.list[s.listPos], true, nil
		case valueNested:
			if err := s.push(n.nested, col+1, dir); err != nil {
				return 0, false, err
			}
		}
	}

	if dir > 0 {
		s.atEnd = true
	} else {
		s.atStart = true
	}
	return 0, false, nil
}
