// Package storage is the page store: files addressed by byte offset and the
// page unit that writes a buffer to a file as part of a transaction.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"cursordb/pkg/dberror"
	"cursordb/pkg/primitives"
)

// File is an OS file addressed by byte offset. It tracks its own size so
// appends can be placed without a stat call.
//
// Thread-safety: all methods take the file's lock.
type File struct {
	mu   sync.RWMutex
	file *os.File
	path primitives.Filepath
	id   primitives.FileID
	size int64
}

// CreateFile creates a new file. It fails if the file already exists.
func CreateFile(path string) (*File, error) {
	if path == "" {
		return nil, dberror.InvalidArgument("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, dberror.IOFailure("CreateFile", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304
	if err != nil {
		return nil, dberror.IOFailure("CreateFile", err)
	}
	return newFile(f, path, 0), nil
}

// OpenFile opens an existing file for reading and writing.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, dberror.NotFound("file", path)
		}
		return nil, dberror.IOFailure("OpenFile", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, dberror.IOFailure("OpenFile", err)
	}
	return newFile(f, path, info.Size()), nil
}

func newFile(f *os.File, path string, size int64) *File {
	fp := primitives.Filepath(path)
	return &File{file: f, path: fp, id: fp.Hash(), size: size}
}

// Path returns the file's location.
func (f *File) Path() string {
	return f.path.String()
}

// ID returns the identifier derived from the path.
func (f *File) ID() primitives.FileID {
	return f.id
}

// Size returns the current length of the file.
func (f *File) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.size
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.file == nil {
		return 0, dberror.IOFailure("ReadAt", os.ErrClosed)
	}
	return f.file.ReadAt(p, off)
}

// WriteAt writes p at off, extending the file if needed.
func (f *File) WriteAt(p []byte, off int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeAtLocked(p, off)
}

func (f *File) writeAtLocked(p []byte, off int64) error {
	if f.file == nil {
		return dberror.IOFailure("WriteAt", os.ErrClosed)
	}
	if _, err := f.file.WriteAt(p, off); err != nil {
		return dberror.IOFailure("WriteAt", err)
	}
	if end := off + int64(len(p)); end > f.size {
		f.size = end
	}
	return nil
}

// Append writes p at the end of the file and returns the offset it was
// written at.
func (f *File) Append(p []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	off := f.size
	if err := f.writeAtLocked(p, off); err != nil {
		return 0, err
	}
	return off, nil
}

// Truncate shrinks or extends the file to size.
func (f *File) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return dberror.IOFailure("Truncate", os.ErrClosed)
	}
	if err := f.file.Truncate(size); err != nil {
		return dberror.IOFailure("Truncate", err)
	}
	f.size = size
	return nil
}

// Sync flushes the file to stable storage.
func (f *File) Sync() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.file == nil {
		return nil
	}
	if err := f.file.Sync(); err != nil {
		return dberror.IOFailure("Sync", err)
	}
	return nil
}

// Close releases the file handle. It's safe to call Close multiple times.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return dberror.IOFailure("Close", err)
	}
	return nil
}

// Remove closes and deletes the file.
func (f *File) Remove() error {
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Remove(f.path.String()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return dberror.IOFailure("Remove", err)
	}
	return nil
}
