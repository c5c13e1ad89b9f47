package trie

import "sort"

// RootDigit is the digit carried by root nodes, including the nested roots
// of the second and later columns of a multi-column index.
const RootDigit uint16 = 0xFFFF

// unsaved marks a node that has no location in the index file yet.
const unsaved int64 = -1

type valueKind uint8

const (
	valueNone valueKind = iota
	valueSingle
	valueList
	valueNested
)

// node is one digit of a key. Its states:
//
//	empty            value none, no remainder, no children
//	compressed leaf  value set, remainder set, no children
//	terminal         value set, no remainder, any children
//	branch           value none, no remainder, one or more children
//
// A file-backed node that was read from disk keeps its children as file
// offsets in childRefs until they are first needed.
type node struct {
	digit     uint16
	remainder []uint16

	kind      valueKind
	single    int64
	list      []int64
	nested    *node
	nestedRef int64

	children  []*node // sorted by digit
	childRefs []int64
	loaded    bool

	offset int64
	size   int
	dirty  bool
}

func newNode(digit uint16) *node {
	return &node{
		digit:     digit,
		nestedRef: unsaved,
		loaded:    true,
		offset:    unsaved,
		dirty:     true,
	}
}

// findChild returns the index of the child with the given digit, or the
// insertion point and false.
func (n *node) findChild(digit uint16) (int, bool) {
	i := sort.Search(len(n.children), func(i int) bool {
		return n.children[i].digit >= digit
	})
	return i, i < len(n.children) && n.children[i].digit == digit
}

func (n *node) child(digit uint16) *node {
	if i, ok := n.findChild(digit); ok {
		return n.children[i]
	}
	return nil
}

func (n *node) insertChild(c *node) {
	i, _ := n.findChild(c.digit)
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = c
}

func (n *node) removeChild(digit uint16) {
	if i, ok := n.findChild(digit); ok {
		n.children = append(n.children[:i], n.children[i+1:]...)
	}
}

func (n *node) hasValue() bool {
	return n.kind != valueNone
}

// isEmpty reports whether the node holds nothing and can be pruned.
func (n *node) isEmpty() bool {
	if n.kind != valueNone {
		return false
	}
	if n.loaded {
		return len(n.children) == 0
	}
	return len(n.childRefs) == 0
}

func (n *node) clearValue() {
	n.kind = valueNone
	n.single = 0
	n.list = nil
	n.nested = nil
	n.nestedRef = unsaved
}

// moveValueTo transfers this node's value slot to dst.
func (n *node) moveValueTo(dst *node) {
	dst.kind, dst.single, dst.list, dst.nested, dst.nestedRef =
		n.kind, n.single, n.list, n.nested, n.nestedRef
	n.clearValue()
}

// moveRemainderValue explodes a compressed leaf by one level: the first unit
// of the remainder becomes a child that takes over the rest of the remainder
// and the value.
func (n *node) moveRemainderValue() {
	c := newNode(n.remainder[0])
	if len(n.remainder) > 1 {
		c.remainder = append([]uint16(nil), n.remainder[1:]...)
	}
	n.moveValueTo(c)
	n.remainder = nil
	n.insertChild(c)
	n.dirty = true
}

// values returns the row offsets stored at the node itself, ignoring nested
// roots.
func (n *node) values() []int64 {
	switch n.kind {
	case valueSingle:
		return []int64{n.single}
	case valueList:
		out := make([]int64, len(n.list))
		copy(out, n.list)
		return out
	default:
		return nil
	}
}
