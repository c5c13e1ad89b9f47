package table

import (
	"encoding/binary"
	"errors"
	"io"

	"cursordb/pkg/dberror"
	"cursordb/pkg/storage"
)

// Row file layout (big-endian):
//
//	header:  magic (4) "CROW", version (4)
//	record:  status (1), capacity (4), length (4), payload (capacity bytes)
//
// A row keeps the offset of its first record for its whole life. When an
// update no longer fits, the payload moves to a new record at the end of the
// file and the original record is turned into a forward pointer to it.
const (
	rowMagic   uint32 = 0x43524F57
	rowVersion uint32 = 1

	fileHeaderSize   = 8
	recordHeaderSize = 9
	forwardSize      = 8
	minCapacity      = 16
)

type recordStatus byte

const (
	statusFree    recordStatus = iota // deleted
	statusLive                        // row data
	statusForward                     // payload holds the offset of the moved record
	statusMoved                       // row data reachable only through a forward record
)

type recordHeader struct {
	status   recordStatus
	capacity int
	length   int
}

// capacityFor leaves room for the row to grow by half before it has to move.
func capacityFor(n int) int {
	c := n + n/2
	if c < minCapacity {
		c = minCapacity
	}
	return c
}

func fileHeader() []byte {
	buf := make([]byte, fileHeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], rowMagic)
	binary.BigEndian.PutUint32(buf[4:8], rowVersion)
	return buf
}

func checkFileHeader(f *storage.File) error {
	buf := make([]byte, fileHeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return dberror.Corruption(f.Path(), "short row file header: %v", err)
	}
	if m := binary.BigEndian.Uint32(buf[0:4]); m != rowMagic {
		return dberror.Corruption(f.Path(), "bad magic %#x", m)
	}
	if v := binary.BigEndian.Uint32(buf[4:8]); v != rowVersion {
		return dberror.Corruption(f.Path(), "unsupported version %d", v)
	}
	return nil
}

// newRecord returns a full record, padded to its capacity, for appending.
func newRecord(status recordStatus, payload []byte) []byte {
	capacity := capacityFor(len(payload))
	buf := make([]byte, recordHeaderSize+capacity)
	putHeader(buf, status, capacity, len(payload))
	copy(buf[recordHeaderSize:], payload)
	return buf
}

// rewriteRecord returns the bytes that overwrite an existing record of the
// given capacity in place. The tail of the old payload is left as it is.
func rewriteRecord(status recordStatus, capacity int, payload []byte) []byte {
	buf := make([]byte, recordHeaderSize+len(payload))
	putHeader(buf, status, capacity, len(payload))
	copy(buf[recordHeaderSize:], payload)
	return buf
}

func forwardRecord(capacity int, target int64) []byte {
	payload := make([]byte, forwardSize)
	binary.BigEndian.PutUint64(payload, uint64(target)) // #nosec G115
	return rewriteRecord(statusForward, capacity, payload)
}

func putHeader(buf []byte, status recordStatus, capacity, length int) {
	buf[0] = byte(status)
	binary.BigEndian.PutUint32(buf[1:5], uint32(capacity)) // #nosec G115
	binary.BigEndian.PutUint32(buf[5:9], uint32(length))   // #nosec G115
}

func readHeader(f *storage.File, off int64) (recordHeader, error) {
	buf := make([]byte, recordHeaderSize)
	if _, err := f.ReadAt(buf, off); err != nil {
		if errors.Is(err, io.EOF) {
			return recordHeader{}, dberror.Corruption(f.Path(), "truncated record header at %d", off)
		}
		return recordHeader{}, dberror.IOFailure("ReadRecord", err)
	}
	h := recordHeader{
		status:   recordStatus(buf[0]),
		capacity: int(binary.BigEndian.Uint32(buf[1:5])),
		length:   int(binary.BigEndian.Uint32(buf[5:9])),
	}
	if h.status > statusMoved {
		return h, dberror.Corruption(f.Path(), "bad record status %d at %d", h.status, off)
	}
	if h.length > h.capacity || off+recordHeaderSize+int64(h.capacity) > f.Size() {
		return h, dberror.Corruption(f.Path(), "record at %d overruns its capacity or the file", off)
	}
	return h, nil
}

func readPayload(f *storage.File, off int64, h recordHeader) ([]byte, error) {
	buf := make([]byte, h.length)
	if h.length == 0 {
		return buf, nil
	}
	if _, err := f.ReadAt(buf, off+recordHeaderSize); err != nil {
		return nil, dberror.IOFailure("ReadRecord", err)
	}
	return buf, nil
}

// locate resolves the record a row's data lives in, following a forward
// pointer. A deleted row reports statusFree.
func locate(f *storage.File, off int64) (int64, recordHeader, error) {
	h, err := readHeader(f, off)
	if err != nil || h.status != statusForward {
		return off, h, err
	}
	if h.length != forwardSize {
		return off, h, dberror.Corruption(f.Path(), "forward record at %d has length %d", off, h.length)
	}
	payload, err := readPayload(f, off, h)
	if err != nil {
		return off, h, err
	}
	target := int64(binary.BigEndian.Uint64(payload)) // #nosec G115
	th, err := readHeader(f, target)
	if err != nil {
		return target, th, err
	}
	if th.status != statusMoved {
		return target, th, dberror.Corruption(f.Path(), "forward from %d reaches a record with status %d", off, th.status)
	}
	return target, th, nil
}

// readRow returns the payload of the row whose first record is at off, or
// nil when the row has been deleted.
func readRow(f *storage.File, off int64) ([]byte, error) {
	at, h, err := locate(f, off)
	if err != nil {
		return nil, err
	}
	if h.status == statusFree {
		return nil, nil
	}
	return readPayload(f, at, h)
}

// scanRows walks every record of the file and returns the offsets of the
// rows it holds, in file order.
func scanRows(f *storage.File) ([]int64, error) {
	var rows []int64
	size := f.Size()
	for off := int64(fileHeaderSize); off < size; {
		h, err := readHeader(f, off)
		if err != nil {
			return nil, err
		}
		if h.status == statusLive || h.status == statusForward {
			rows = append(rows, off)
		}
		off += recordHeaderSize + int64(h.capacity)
	}
	return rows, nil
}
