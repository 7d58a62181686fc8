package assemble

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/diffra/internal/mmap"
	"github.com/hupe1980/diffra/model"
)

const pixelBytes = 4 // uint32

// buffer is the rows x H x W pixel store. It owns its mapping and is never
// resized in place.
type buffer struct {
	mapping *mmap.Mapping
	data    []uint32
	rows    int
	h, w    int
}

// newBuffer allocates a zeroed buffer. With memmapEnabled it is backed by an
// owner-only scratch file under scratchDir, otherwise by anonymous memory.
// Both backings are zero pages from the kernel.
func newBuffer(rows, h, w int, memmapEnabled bool, scratchDir string) (*buffer, error) {
	if rows < 0 || h < 0 || w < 0 {
		return nil, fmt.Errorf("assemble: invalid buffer shape (%d,%d,%d)", rows, h, w)
	}

	size := rows * h * w * pixelBytes
	if size == 0 {
		return &buffer{rows: rows, h: h, w: w}, nil
	}

	var (
		m   *mmap.Mapping
		err error
	)
	if memmapEnabled {
		m, err = mmap.CreateScratch(scratchDir, size)
	} else {
		m, err = mmap.Anon(size)
	}
	if err != nil {
		return nil, fmt.Errorf("assemble: allocate buffer: %w", err)
	}

	raw := m.Bytes()
	data := unsafe.Slice((*uint32)(unsafe.Pointer(&raw[0])), len(raw)/pixelBytes)

	return &buffer{mapping: m, data: data, rows: rows, h: h, w: w}, nil
}

// sizeBytes returns the allocation size.
func (b *buffer) sizeBytes() int64 {
	return int64(b.rows) * int64(b.h) * int64(b.w) * pixelBytes
}

// row returns the flat H*W pixel slice for one buffer row.
func (b *buffer) row(i int) []uint32 {
	size := b.h * b.w
	return b.data[i*size : (i+1)*size]
}

// copyRows copies count rows starting at row start into a fresh block.
func (b *buffer) copyRows(start, count int) *model.Block {
	out := model.NewBlock(count, b.h, b.w)
	size := b.h * b.w
	copy(out.Data, b.data[start*size:(start+count)*size])
	return out
}

func (b *buffer) close() error {
	b.data = nil
	if b.mapping == nil {
		return nil
	}
	return b.mapping.Close()
}
