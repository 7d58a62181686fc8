package assemble

import (
	"context"

	"github.com/hupe1980/diffra/model"
)

// Array is a read-only PatternArray view into the shared assembled buffer,
// covering the disjoint row range assigned to one source array.
type Array struct {
	ds    *Dataset
	label string
	start int
	end   int
}

var _ model.PatternArray = (*Array)(nil)

// Label returns the source array's name.
func (a *Array) Label() string { return a.label }

// Range returns the buffer row range [start, end) owned by this array.
func (a *Array) Range() (start, end int) { return a.start, a.end }

// Indexes returns the global pattern indices currently recorded for this
// array's rows. Slots not yet assembled hold model.UnassignedIndex.
func (a *Array) Indexes() []int64 {
	a.ds.mu.Lock()
	defer a.ds.mu.Unlock()

	out := make([]int64, a.end-a.start)
	copy(out, a.ds.indexes[a.start:a.end])
	return out
}

// Data returns a copy of this array's buffer rows. Rows not yet assembled
// are zero-filled.
func (a *Array) Data(_ context.Context) (*model.Block, error) {
	a.ds.mu.Lock()
	buf := a.ds.buf
	a.ds.mu.Unlock()

	return buf.copyRows(a.start, a.end-a.start), nil
}
