package trie

import (
	"bufio"
	"encoding/binary"
	"io"
	"log/slog"

	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
	"cursordb/pkg/storage"
)

// Index file layout, all integers big-endian:
//
//	magic    u32  "CTRI"
//	version  u32
//	unique   u8
//	root     node record in a fixed slot of rootSlotSize bytes
//
// Node record:
//
//	digit u16 | remainder length u32 | remainder units u16... | value tag u8 |
//	value payload | child count u32 | child offsets i64...
//
// Value payloads: tag 0 none, tag 1 one i64 row offset, tag 2 u32 count and
// that many i64 row offsets, tag 3 the i64 offset of a nested root node.
const (
	fileMagic   uint32 = 0x43545249
	fileVersion uint32 = 2

	headerSize         = 9
	rootOffset   int64 = headerSize
	rootSlotSize       = 32

	tagNone   byte = 0
	tagSingle byte = 1
	tagList   byte = 2
	tagNested byte = 3
)

// fileStore persists the nodes of one index file. Nodes are loaded on demand
// and kept in an offset→node cache so every offset maps to one live node.
type fileStore struct {
	file  *storage.File
	root  *node
	cache map[int64]*node
	log   *slog.Logger
}

func createStore(path string, unique bool) (*fileStore, error) {
	f, err := storage.CreateFile(path)
	if err != nil {
		return nil, err
	}

	hdr := make([]byte, headerSize, headerSize+rootSlotSize)
	binary.BigEndian.PutUint32(hdr[0:], fileMagic)
	binary.BigEndian.PutUint32(hdr[4:], fileVersion)
	if unique {
		hdr[8] = 1
	}

	root := newNode(RootDigit)
	rec := encodeNode(root)
	hdr = append(hdr, rec...)
	hdr = append(hdr, make([]byte, rootSlotSize-len(rec))...)
	if err := f.WriteAt(hdr, 0); err != nil {
		_ = f.Remove()
		return nil, err
	}

	root.offset, root.size, root.dirty = rootOffset, rootSlotSize, false
	st := &fileStore{
		file:  f,
		root:  root,
		cache: map[int64]*node{rootOffset: root},
		log:   logging.WithFile(path),
	}
	return st, nil
}

func openStore(path string) (*fileStore, bool, error) {
	f, err := storage.OpenFile(path)
	if err != nil {
		return nil, false, err
	}

	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		_ = f.Close()
		return nil, false, dberror.Corruption(path, "short header: %v", err)
	}
	if m := binary.BigEndian.Uint32(hdr[0:]); m != fileMagic {
		_ = f.Close()
		return nil, false, dberror.Corruption(path, "bad magic %#x", m)
	}
	if v := binary.BigEndian.Uint32(hdr[4:]); v != fileVersion {
		_ = f.Close()
		return nil, false, dberror.Corruption(path, "unsupported version %d", v)
	}

	st := &fileStore{
		file:  f,
		cache: make(map[int64]*node),
		log:   logging.WithFile(path),
	}
	root, err := st.load(rootOffset)
	if err != nil {
		_ = f.Close()
		return nil, false, err
	}
	root.size = rootSlotSize
	st.root = root
	return st, hdr[8] != 0, nil
}

// load returns the node stored at off, reading it if it is not cached.
func (st *fileStore) load(off int64) (*node, error) {
	if n, ok := st.cache[off]; ok {
		return n, nil
	}
	if off < headerSize || off >= st.file.Size() {
		return nil, dberror.Corruption(st.file.Path(), "node offset %d out of range", off)
	}

	n, err := st.decodeNode(off)
	if err != nil {
		return nil, err
	}
	st.cache[off] = n
	return n, nil
}

// ensureLoaded materializes the direct children and nested root of n.
func (st *fileStore) ensureLoaded(n *node) error {
	if !n.loaded {
		children := make([]*node, 0, len(n.childRefs))
		for _, ref := range n.childRefs {
			c, err := st.load(ref)
			if err != nil {
				return err
			}
			if k := len(children); k > 0 && children[k-1].digit >= c.digit {
				return dberror.Corruption(st.file.Path(), "children of node at %d are not sorted", n.offset)
			}
			children = append(children, c)
		}
		n.children = children
		n.childRefs = nil
		n.loaded = true
	}

	if n.kind == valueNested && n.nested == nil {
		nested, err := st.load(n.nestedRef)
		if err != nil {
			return err
		}
		n.nested = nested
	}
	return nil
}

// flush writes every dirty node reachable from the root, children before
// parents, so a parent record always carries its children's final offsets.
func (st *fileStore) flush() error {
	written := 0
	if err := st.flushNode(st.root, &written); err != nil {
		return err
	}
	if written > 0 {
		st.log.Debug("index flushed", "nodes_written", written, "file_size", st.file.Size())
	}
	return st.file.Sync()
}

func (st *fileStore) flushNode(n *node, written *int) error {
	if !n.dirty {
		return nil
	}
	for _, c := range n.children {
		if err := st.flushNode(c, written); err != nil {
			return err
		}
	}
	if n.kind == valueNested && n.nested != nil {
		if err := st.flushNode(n.nested, written); err != nil {
			return err
		}
	}

	rec := encodeNode(n)
	switch {
	case n.offset != unsaved && len(rec) <= n.size:
		if err := st.file.WriteAt(rec, n.offset); err != nil {
			return err
		}
	case n == st.root:
		return dberror.Corruption(st.file.Path(), "root record of %d bytes exceeds its slot", len(rec))
	default:
		slack := len(rec) / 4
		if slack < 8 {
			slack = 8
		}
		buf := append(rec, make([]byte, slack)...)
		off, err := st.file.Append(buf)
		if err != nil {
			return err
		}
		if n.offset != unsaved {
			delete(st.cache, n.offset)
		}
		n.offset, n.size = off, len(buf)
		st.cache[off] = n
	}

	n.dirty = false
	*written++
	return nil
}

func (st *fileStore) close() error {
	return st.file.Close()
}

func encodeNode(n *node) []byte {
	b := make([]byte, 0, 16+2*len(n.remainder)+8*len(n.children))
	b = binary.BigEndian.AppendUint16(b, n.digit)
	b = binary.BigEndian.AppendUint32(b, uint32(len(n.remainder))) // #nosec G115
	for _, u := range n.remainder {
		b = binary.BigEndian.AppendUint16(b, u)
	}

	switch n.kind {
	case valueSingle:
		b = append(b, tagSingle)
		b = binary.BigEndian.AppendUint64(b, uint64(n.single)) // #nosec G115
	case valueList:
		b = append(b, tagList)
		b = binary.BigEndian.AppendUint32(b, uint32(len(n.list))) // #nosec G115
		for _, v := range n.list {
			b = binary.BigEndian.AppendUint64(b, uint64(v)) // #nosec G115
		}
	case valueNested:
		ref := n.nestedRef
		if n.nested != nil {
			ref = n.nested.offset
		}
		b = append(b, tagNested)
		b = binary.BigEndian.AppendUint64(b, uint64(ref)) // #nosec G115
	default:
		b = append(b, tagNone)
	}

	if n.loaded {
		b = binary.BigEndian.AppendUint32(b, uint32(len(n.children))) // #nosec G115
		for _, c := range n.children {
			b = binary.BigEndian.AppendUint64(b, uint64(c.offset)) // #nosec G115
		}
	} else {
		b = binary.BigEndian.AppendUint32(b, uint32(len(n.childRefs))) // #nosec G115
		for _, ref := range n.childRefs {
			b = binary.BigEndian.AppendUint64(b, uint64(ref)) // #nosec G115
		}
	}
	return b
}

// recordReader reads one node record and counts the bytes consumed.
type recordReader struct {
	r    *bufio.Reader
	n    int
	path string
	off  int64
}

func (rr *recordReader) next(k int) ([]byte, error) {
	buf := make([]byte, k)
	if _, err := io.ReadFull(rr.r, buf); err != nil {
		return nil, dberror.Corruption(rr.path, "truncated node at offset %d: %v", rr.off, err)
	}
	rr.n += k
	return buf, nil
}

func (st *fileStore) decodeNode(off int64) (*node, error) {
	limit := st.file.Size() - off
	rr := &recordReader{
		r:    bufio.NewReader(io.NewSectionReader(st.file, off, limit)),
		path: st.file.Path(),
		off:  off,
	}

	b, err := rr.next(6)
	if err != nil {
		return nil, err
	}
	n := &node{
		digit:     binary.BigEndian.Uint16(b),
		nestedRef: unsaved,
		offset:    off,
	}

	remLen := int64(binary.BigEndian.Uint32(b[2:]))
	if remLen*2 > limit {
		return nil, dberror.Corruption(rr.path, "remainder length %d at offset %d exceeds file", remLen, off)
	}
	if remLen > 0 {
		if b, err = rr.next(int(remLen) * 2); err != nil {
			return nil, err
		}
		n.remainder = make([]uint16, remLen)
		for i := range n.remainder {
			n.remainder[i] = binary.BigEndian.Uint16(b[2*i:])
		}
	}

	if b, err = rr.next(1); err != nil {
		return nil, err
	}
	switch b[0] {
	case tagNone:
	case tagSingle:
		if b, err = rr.next(8); err != nil {
			return nil, err
		}
		n.kind, n.single = valueSingle, int64(binary.BigEndian.Uint64(b)) // #nosec G115
	case tagList:
		if b, err = rr.next(4); err != nil {
			return nil, err
		}
		count := int64(binary.BigEndian.Uint32(b))
		if count*8 > limit {
			return nil, dberror.Corruption(rr.path, "duplicate list of %d entries at offset %d exceeds file", count, off)
		}
		if b, err = rr.next(int(count) * 8); err != nil {
			return nil, err
		}
		n.kind = valueList
		n.list = make([]int64, count)
		for i := range n.list {
			n.list[i] = int64(binary.BigEndian.Uint64(b[8*i:])) // #nosec G115
		}
	case tagNested:
		if b, err = rr.next(8); err != nil {
			return nil, err
		}
		n.kind, n.nestedRef = valueNested, int64(binary.BigEndian.Uint64(b)) // #nosec G115
	default:
		return nil, dberror.Corruption(rr.path, "bad value tag %d at offset %d", b[0], off)
	}

	if b, err = rr.next(4); err != nil {
		return nil, err
	}
	cc := int(binary.BigEndian.Uint32(b))
	if int64(cc)*8 > limit {
		return nil, dberror.Corruption(rr.path, "%d children at offset %d exceed file", cc, off)
	}
	if cc > 0 {
		if b, err = rr.next(cc * 8); err != nil {
			return nil, err
		}
		n.childRefs = make([]int64, cc)
		for i := range n.childRefs {
			n.childRefs[i] = int64(binary.BigEndian.Uint64(b[8*i:])) // #nosec G115
		}
	} else {
		n.loaded = true
	}

	n.size = rr.n
	return n, nil
}
