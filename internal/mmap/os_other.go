//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Fallback for platforms without unix mmap: heap-allocated memory, with
// file-backed "mappings" loaded and flushed through regular file I/O.

func osMapFile(f *os.File, size int, writable bool) (data []byte, unmap func([]byte) error, sync func([]byte) error, err error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, nil, nil, err
	}

	noop := func([]byte) error { return nil }

	var syncFunc func([]byte) error
	if writable {
		syncFunc = func(b []byte) error {
			_, err := f.WriteAt(b, 0)
			return err
		}
	}

	return buf, noop, syncFunc, nil
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}

func osAdvise(_ []byte, _ AccessPattern) error {
	return nil
}
