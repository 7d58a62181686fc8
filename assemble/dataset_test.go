package assemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diffra/loader"
	"github.com/hupe1980/diffra/model"
	"github.com/hupe1980/diffra/process"
)

func newTestLoader(t *testing.T, extent model.Extent2D, workers int) *loader.Loader {
	t.Helper()

	p, err := process.New(process.Config{DetectorExtent: extent})
	require.NoError(t, err)

	l := loader.New(loader.Options{Workers: workers, PopTimeout: 10 * time.Millisecond})
	l.Start(context.Background(), p)
	t.Cleanup(func() { l.Stop(false) })
	return l
}

func valueBlock(n, h, w int, base uint32) *model.Block {
	b := model.NewBlock(n, h, w)
	for i := range b.Data {
		b.Data[i] = base + uint32(i)
	}
	return b
}

func testDataset(extent model.Extent2D, numArrays, perArray int) *model.SimpleDataset {
	ds := &model.SimpleDataset{
		Meta: model.Metadata{
			NumPatternsPerArray: perArray,
			NumPatternsTotal:    numArrays * perArray,
			DetectorExtent:      extent,
		},
	}
	for i := 0; i < numArrays; i++ {
		block := valueBlock(perArray, extent.Height, extent.Width, uint32(i)*1000)
		ds.Sources = append(ds.Sources, model.NewSimpleArray("arr", int64(i*perArray), block))
	}
	return ds
}

// pump drains the assembly queue until want rows are loaded or the timeout
// elapses.
func pump(t *testing.T, d *Dataset, want int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		d.Assemble()
		if len(d.AssembledIndexes()) >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("assembled %d of %d rows before timeout", len(d.AssembledIndexes()), want)
}

func TestDataset_EndToEnd(t *testing.T) {
	extent := model.Extent2D{Width: 128, Height: 128}
	l := loader.New(loader.Options{Workers: 3, PopTimeout: 10 * time.Millisecond})
	d := New(Options{Loader: l})
	defer d.Close()

	src := testDataset(extent, 3, 2)
	require.NoError(t, d.Reload(context.Background(), src, extent))

	p, err := process.New(process.Config{DetectorExtent: extent})
	require.NoError(t, err)
	l.Start(context.Background(), p)
	defer l.Stop(false)

	pump(t, d, 6, 5*time.Second)

	indexes := d.AssembledIndexes()
	require.Len(t, indexes, 6)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, indexes)

	patterns := d.AssembledPatterns()
	assert.Equal(t, 6, patterns.N)
	assert.Equal(t, extent, patterns.Extent())

	// Each row carries its source array's values.
	size := extent.Size()
	for row := 0; row < 6; row++ {
		want := uint32(row/2)*1000 + uint32((row%2)*size)
		assert.Equal(t, want, patterns.Frame(row)[0], "row %d", row)
	}

	assert.Equal(t, src.Meta, d.Metadata())
	assert.Equal(t, extent, d.ProcessedExtent())
	assert.Equal(t, 3, d.Len())
}

func TestDataset_PartialAssembly(t *testing.T) {
	extent := model.Extent2D{Width: 8, Height: 8}
	l := loader.New(loader.Options{Workers: 1, PopTimeout: 10 * time.Millisecond})
	d := New(Options{Loader: l})
	defer d.Close()

	src := testDataset(extent, 4, 2)
	require.NoError(t, d.Reload(context.Background(), src, extent))

	// Nothing processed yet: everything reads as empty/unassigned.
	assert.Empty(t, d.AssembledIndexes())
	assert.Equal(t, 0, d.AssembledPatterns().N)

	a, err := d.At(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{model.UnassignedIndex, model.UnassignedIndex}, a.Indexes())

	p, err := process.New(process.Config{DetectorExtent: extent})
	require.NoError(t, err)
	l.Start(context.Background(), p)
	defer l.Stop(false)

	pump(t, d, 8, 5*time.Second)

	// Assemble with nothing new pending is a no-op.
	assert.Equal(t, 0, d.Assemble())
	assert.Len(t, d.AssembledIndexes(), 8)
}

func TestDataset_ArrayFacade(t *testing.T) {
	extent := model.Extent2D{Width: 4, Height: 4}
	l := newTestLoader(t, extent, 1)
	d := New(Options{Loader: l})
	defer d.Close()

	src := testDataset(extent, 2, 3)
	require.NoError(t, d.Reload(context.Background(), src, extent))

	p, err := process.New(process.Config{DetectorExtent: extent})
	require.NoError(t, err)
	l.Start(context.Background(), p)
	pump(t, d, 6, 5*time.Second)

	a0, err := d.At(0)
	require.NoError(t, err)
	a1, err := d.At(1)
	require.NoError(t, err)

	// Row ranges are disjoint and contiguous.
	s0, e0 := a0.(*Array).Range()
	s1, e1 := a1.(*Array).Range()
	assert.Equal(t, 0, s0)
	assert.Equal(t, 3, e0)
	assert.Equal(t, 3, s1)
	assert.Equal(t, 6, e1)

	assert.Equal(t, []int64{0, 1, 2}, a0.Indexes())
	assert.Equal(t, []int64{3, 4, 5}, a1.Indexes())

	b1, err := a1.Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, b1.N)
	assert.Equal(t, uint32(1000), b1.Frame(0)[0])

	_, err = d.At(2)
	assert.Error(t, err)
	_, err = d.At(-1)
	assert.Error(t, err)
}

func TestDataset_AppendBeyondBufferSkipped(t *testing.T) {
	extent := model.Extent2D{Width: 4, Height: 4}
	l := loader.New(loader.Options{Workers: 1, PopTimeout: 10 * time.Millisecond})
	d := New(Options{Loader: l})
	defer d.Close()

	src := testDataset(extent, 1, 2)
	require.NoError(t, d.Reload(context.Background(), src, extent))

	p, err := process.New(process.Config{DetectorExtent: extent})
	require.NoError(t, err)
	l.Start(context.Background(), p)
	defer l.Stop(false)

	// Second append has no buffer rows left; its batch is skipped, not
	// written out of bounds.
	extra := model.NewSimpleArray("extra", 2, valueBlock(2, 4, 4, 9000))
	require.NoError(t, d.AppendArray(extra))

	pump(t, d, 2, 5*time.Second)
	time.Sleep(50 * time.Millisecond)
	d.Assemble()

	assert.Equal(t, []int64{0, 1}, d.AssembledIndexes())
	assert.Equal(t, 2, d.Len())
}

func TestDataset_Events(t *testing.T) {
	extent := model.Extent2D{Width: 4, Height: 4}
	l := loader.New(loader.Options{Workers: 1, PopTimeout: 10 * time.Millisecond})
	d := New(Options{Loader: l})
	defer d.Close()

	src := testDataset(extent, 2, 1)
	require.NoError(t, d.Reload(context.Background(), src, extent))

	ev := d.DrainEvents()
	require.Len(t, ev, 3)
	assert.Equal(t, model.EventReloaded, ev[0].Kind)
	assert.Equal(t, model.Event{Kind: model.EventInserted, Index: 0}, ev[1])
	assert.Equal(t, model.Event{Kind: model.EventInserted, Index: 1}, ev[2])

	// Drain clears.
	assert.Empty(t, d.DrainEvents())

	p, err := process.New(process.Config{DetectorExtent: extent})
	require.NoError(t, err)
	l.Start(context.Background(), p)
	defer l.Stop(false)
	pump(t, d, 2, 5*time.Second)

	changed := 0
	for _, e := range d.DrainEvents() {
		if e.Kind == model.EventChanged {
			changed++
		}
	}
	assert.Equal(t, 2, changed)
}

func TestDataset_ReloadReplacesState(t *testing.T) {
	small := model.Extent2D{Width: 4, Height: 4}
	l := loader.New(loader.Options{Workers: 1, PopTimeout: 10 * time.Millisecond})
	d := New(Options{Loader: l})
	defer d.Close()

	require.NoError(t, d.Reload(context.Background(), testDataset(small, 2, 2), small))
	p, err := process.New(process.Config{DetectorExtent: small})
	require.NoError(t, err)
	l.Start(context.Background(), p)
	pump(t, d, 4, 5*time.Second)

	big := model.Extent2D{Width: 8, Height: 8}
	require.NoError(t, d.Reload(context.Background(), testDataset(big, 1, 3), big))

	assert.Empty(t, d.AssembledIndexes())
	assert.Equal(t, big, d.ProcessedExtent())
	assert.Equal(t, 1, d.Len())

	p, err = process.New(process.Config{DetectorExtent: big})
	require.NoError(t, err)
	l.Start(context.Background(), p)
	defer l.Stop(false)
	pump(t, d, 3, 5*time.Second)

	assert.Equal(t, []int64{0, 1, 2}, d.AssembledIndexes())
}

func TestDataset_Clear(t *testing.T) {
	extent := model.Extent2D{Width: 4, Height: 4}
	l := loader.New(loader.Options{Workers: 1, PopTimeout: 10 * time.Millisecond})
	d := New(Options{Loader: l})
	defer d.Close()

	require.NoError(t, d.Reload(context.Background(), testDataset(extent, 2, 2), extent))
	d.DrainEvents()

	d.Clear()

	assert.Equal(t, model.Metadata{}, d.Metadata())
	assert.Equal(t, model.Extent2D{}, d.ProcessedExtent())
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.AssembledIndexes())

	ev := d.DrainEvents()
	require.Len(t, ev, 1)
	assert.Equal(t, model.EventReloaded, ev[0].Kind)
}

func TestDataset_MemmapBacked(t *testing.T) {
	extent := model.Extent2D{Width: 16, Height: 16}
	l := loader.New(loader.Options{Workers: 1, PopTimeout: 10 * time.Millisecond})
	d := New(Options{Loader: l, MemmapEnabled: true, ScratchDir: t.TempDir()})
	defer d.Close()

	src := testDataset(extent, 2, 2)
	require.NoError(t, d.Reload(context.Background(), src, extent))

	p, err := process.New(process.Config{DetectorExtent: extent})
	require.NoError(t, err)
	l.Start(context.Background(), p)
	defer l.Stop(false)
	pump(t, d, 4, 5*time.Second)

	assert.Equal(t, []int64{0, 1, 2, 3}, d.AssembledIndexes())
	assert.Equal(t, uint32(1000), d.AssembledPatterns().Frame(2)[0])
}
