package model

import "fmt"

// Block is one batch of diffraction frames in row-major N x H x W layout.
// Pixel values are uint32: wide enough to hold summed bins of any detector
// with a bit depth up to 16 without overflow.
type Block struct {
	Data []uint32
	N    int
	H    int
	W    int
}

// NewBlock allocates a zeroed batch of n frames of h x w pixels.
func NewBlock(n, h, w int) *Block {
	return &Block{
		Data: make([]uint32, n*h*w),
		N:    n,
		H:    h,
		W:    w,
	}
}

// BlockFromSlice wraps an existing slice without copying. The slice length
// must equal n*h*w.
func BlockFromSlice(data []uint32, n, h, w int) (*Block, error) {
	if len(data) != n*h*w {
		return nil, fmt.Errorf("block: slice length %d does not match %dx%dx%d", len(data), n, h, w)
	}
	return &Block{Data: data, N: n, H: h, W: w}, nil
}

// Extent returns the per-frame extent.
func (b *Block) Extent() Extent2D {
	return Extent2D{Width: b.W, Height: b.H}
}

// Frame returns the i-th frame as a flat H*W slice sharing the block's memory.
func (b *Block) Frame(i int) []uint32 {
	size := b.H * b.W
	return b.Data[i*size : (i+1)*size]
}

// At returns the pixel at frame n, row y, column x.
func (b *Block) At(n, y, x int) uint32 {
	return b.Data[(n*b.H+y)*b.W+x]
}

// Set stores v at frame n, row y, column x.
func (b *Block) Set(n, y, x int, v uint32) {
	b.Data[(n*b.H+y)*b.W+x] = v
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	data := make([]uint32, len(b.Data))
	copy(data, b.Data)
	return &Block{Data: data, N: b.N, H: b.H, W: b.W}
}
