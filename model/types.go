package model

import (
	"context"
	"fmt"
)

// UnassignedIndex is the sentinel stored in an index slot whose buffer row
// has not been loaded yet.
const UnassignedIndex int64 = -1

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  int
	Height int
}

// String returns a string representation of the Extent2D.
func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Size returns Width * Height.
func (e Extent2D) Size() int {
	return e.Width * e.Height
}

// Point2D is an x/y pixel position.
type Point2D struct {
	X int
	Y int
}

// Metadata is the immutable description of the target dataset, created once
// when a dataset is opened or a streaming session is initialized and replaced
// wholesale on reload.
type Metadata struct {
	// NumPatternsPerArray is the number of frames contributed by one source array.
	NumPatternsPerArray int
	// NumPatternsTotal is the total number of frames across all source arrays.
	NumPatternsTotal int
	// PatternBitDepth is the detector ADC bit depth.
	PatternBitDepth int
	// DetectorExtent is the unprocessed detector frame extent in pixels.
	DetectorExtent Extent2D
	// DetectorDistanceM is the sample-to-detector distance in meters.
	DetectorDistanceM float64
	// PixelSizeM is the detector pixel pitch in meters.
	PixelSizeM float64
	// CropCenter is an optional crop-center hint from the data file.
	CropCenter *Point2D
	// FilePath is the source file, empty for live acquisition.
	FilePath string
}

// NumSourceArrays returns the number of source arrays implied by the counts.
func (m Metadata) NumSourceArrays() int {
	if m.NumPatternsPerArray <= 0 {
		return 0
	}
	n := m.NumPatternsTotal / m.NumPatternsPerArray
	if m.NumPatternsTotal%m.NumPatternsPerArray != 0 {
		n++
	}
	return n
}

// PatternArray is one unit of raw pattern data as delivered by a file reader
// or a live push. Its Indexes define the disjoint buffer slice it owns.
type PatternArray interface {
	// Label returns a human-readable name for the array.
	Label() string
	// Indexes returns the global pattern indices this array contributes.
	Indexes() []int64
	// Data returns the raw frames. It may fail on I/O errors.
	Data(ctx context.Context) (*Block, error)
}

// SimpleArray is an in-memory PatternArray.
type SimpleArray struct {
	ArrayLabel   string
	ArrayIndexes []int64
	Block        *Block
}

// NewSimpleArray creates an in-memory PatternArray covering the contiguous
// index range [offset, offset+block.N).
func NewSimpleArray(label string, offset int64, block *Block) *SimpleArray {
	indexes := make([]int64, block.N)
	for i := range indexes {
		indexes[i] = offset + int64(i)
	}
	return &SimpleArray{ArrayLabel: label, ArrayIndexes: indexes, Block: block}
}

// Label returns the array name.
func (a *SimpleArray) Label() string { return a.ArrayLabel }

// Indexes returns the global pattern indices.
func (a *SimpleArray) Indexes() []int64 { return a.ArrayIndexes }

// Data returns the in-memory frames.
func (a *SimpleArray) Data(_ context.Context) (*Block, error) { return a.Block, nil }

// Dataset is a metadata + source-array pair, the unit handed to Reload by a
// file reader.
type Dataset interface {
	// Metadata returns the dataset description.
	Metadata() Metadata
	// Arrays returns the source arrays in submission order.
	Arrays() []PatternArray
}

// SimpleDataset is an in-memory Dataset.
type SimpleDataset struct {
	Meta    Metadata
	Sources []PatternArray
}

// Metadata returns the dataset description.
func (d *SimpleDataset) Metadata() Metadata { return d.Meta }

// Arrays returns the source arrays.
func (d *SimpleDataset) Arrays() []PatternArray { return d.Sources }

// EmptyDataset returns a Dataset with zeroed metadata and no arrays, used as
// the placeholder when a streaming session starts before any frame arrives.
func EmptyDataset() Dataset {
	return &SimpleDataset{}
}
