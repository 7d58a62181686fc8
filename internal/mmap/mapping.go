package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a memory mapping. It owns the underlying byte slice and
// is responsible for unmapping it.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool

	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
	// sync flushes dirty pages for file-backed mappings, nil otherwise.
	sync func([]byte) error
	// file keeps a file-backed mapping's descriptor alive until Close.
	file *os.File
}

// Anon creates an anonymous read-write mapping of size bytes. The memory is
// zero-initialized by the kernel.
func Anon(size int) (*Mapping, error) {
	if size < 0 {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &Mapping{}, nil
	}

	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}

	return &Mapping{data: data, size: size, unmap: unmapFunc}, nil
}

// CreateScratch creates a read-write mapping of size bytes backed by an
// owner-only temp file under dir. The file is unlinked as soon as the
// mapping exists, so the scratch space is reclaimed when the mapping is
// closed or the process exits, on every path.
func CreateScratch(dir string, size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	f, err := os.CreateTemp(dir, "diffra-scratch-*.bin")
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	data, unmapFunc, syncFunc, err := osMapFile(f, size, true)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	// The mapping keeps the pages alive; dropping the name here guarantees
	// deletion even if Close is never reached.
	if err := os.Remove(f.Name()); err != nil {
		_ = unmapFunc(data)
		f.Close()
		return nil, err
	}

	return &Mapping{data: data, size: size, unmap: unmapFunc, sync: syncFunc, file: f}, nil
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := fi.Size()
	if size < 0 {
		f.Close()
		return nil, ErrInvalidSize
	}
	if size == 0 {
		f.Close()
		return &Mapping{}, nil
	}

	data, unmapFunc, _, err := osMapFile(f, int(size), false)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Mapping{data: data, size: int(size), unmap: unmapFunc, file: f}, nil
}

// Close unmaps the memory and closes the backing file. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}

	var err error
	if m.unmap != nil && m.data != nil {
		err = m.unmap(m.data)
		m.data = nil
	}
	if m.file != nil {
		if closeErr := m.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		m.file = nil
	}
	return err
}

// Bytes returns the underlying byte slice.
// Warning: the slice is valid only until Close() is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Sync flushes dirty pages to the backing file. It is a no-op for anonymous
// mappings.
func (m *Mapping) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.sync == nil || m.data == nil {
		return nil
	}
	return m.sync(m.data)
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
