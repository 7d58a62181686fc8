package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/diffra/loader"
	"github.com/hupe1980/diffra/model"
	"github.com/hupe1980/diffra/resource"
)

// Options configures a Dataset.
type Options struct {
	// Loader processes appended arrays. Required.
	Loader *loader.Loader
	// MemmapEnabled backs the buffer with a scratch file instead of
	// anonymous memory.
	MemmapEnabled bool
	// ScratchDir is the scratch-file directory when MemmapEnabled is set.
	ScratchDir string
	// Controller charges buffer allocations against a memory budget. Optional.
	Controller *resource.Controller
	// Logger receives skip/drop logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Dataset is the assembled diffraction dataset: metadata, index array and
// pattern buffer, plus the per-source-array facades and pending change
// events.
type Dataset struct {
	loader        *loader.Loader
	memmapEnabled bool
	scratchDir    string
	controller    *resource.Controller
	logger        *slog.Logger

	mu      sync.Mutex
	meta    model.Metadata
	extent  model.Extent2D
	buf     *buffer
	charged int64
	indexes []int64
	loaded  *roaring.Bitmap
	arrays  []*Array
	events  []model.Event
}

// New creates an empty Dataset.
func New(o Options) *Dataset {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Dataset{
		loader:        o.Loader,
		memmapEnabled: o.MemmapEnabled,
		scratchDir:    o.ScratchDir,
		controller:    o.Controller,
		logger:        o.Logger,
		buf:           &buffer{},
		loaded:        roaring.New(),
	}
}

// Reload stops any in-flight loading, replaces metadata, index array and
// buffer with a fresh pair sized for ds, and enqueues every source array of
// ds. Allocation failures leave the previous state intact and are returned
// to the caller. Emits a Reloaded event.
func (d *Dataset) Reload(ctx context.Context, ds model.Dataset, extent model.Extent2D) error {
	d.loader.Stop(false)

	meta := ds.Metadata()
	rows := meta.NumPatternsTotal

	bytes := int64(rows) * int64(extent.Height) * int64(extent.Width) * pixelBytes
	if err := d.controller.AcquireMemory(ctx, bytes); err != nil {
		return fmt.Errorf("assemble: memory budget: %w", err)
	}

	buf, err := newBuffer(rows, extent.Height, extent.Width, d.memmapEnabled, d.scratchDir)
	if err != nil {
		d.controller.ReleaseMemory(bytes)
		return err
	}

	indexes := make([]int64, rows)
	for i := range indexes {
		indexes[i] = model.UnassignedIndex
	}

	d.mu.Lock()
	old, oldCharged := d.buf, d.charged
	d.meta = meta
	d.extent = extent
	d.buf = buf
	d.charged = bytes
	d.indexes = indexes
	d.loaded = roaring.New()
	d.arrays = nil
	d.events = append(d.events, model.Event{Kind: model.EventReloaded})
	d.mu.Unlock()

	d.release(old, oldCharged)

	for _, array := range ds.Arrays() {
		if err := d.AppendArray(array); err != nil {
			return err
		}
	}
	return nil
}

// AppendArray enqueues one source array with the loader and registers its
// read-only facade. The facade's buffer row bounds are fixed here, at append
// time, which is what makes later concurrent writes safe. Emits an Inserted
// event with the new array's position.
func (d *Dataset) AppendArray(array model.PatternArray) error {
	d.mu.Lock()
	perArray := d.meta.NumPatternsPerArray
	if perArray <= 0 {
		perArray = len(array.Indexes())
	}

	position := len(d.arrays)
	start := position * perArray
	end := start + perArray
	if end > d.buf.rows {
		end = d.buf.rows
	}
	if start > d.buf.rows {
		start = d.buf.rows
	}

	facade := &Array{ds: d, label: array.Label(), start: start, end: end}
	d.arrays = append(d.arrays, facade)
	d.events = append(d.events, model.Event{Kind: model.EventInserted, Index: position})
	d.mu.Unlock()

	d.loader.LoadArray(position, array)
	return nil
}

// Assemble drains the loader's assembly queue without blocking, writing each
// processed batch into the disjoint buffer slice owned by its source array
// and marking the corresponding index slots loaded. Calling it again with
// nothing new in the queue changes nothing. Returns the number of batches
// folded in.
func (d *Dataset) Assemble() int {
	count := 0
	for {
		a, ok := d.loader.Next()
		if !ok {
			return count
		}
		if d.fold(a) {
			count++
		}
	}
}

func (d *Dataset) fold(a loader.Assembled) bool {
	d.mu.Lock()
	buf := d.buf
	perArray := d.meta.NumPatternsPerArray
	d.mu.Unlock()

	if perArray <= 0 {
		perArray = a.Block.N
	}

	start := a.SourceIndex * perArray
	if a.Block.H != buf.h || a.Block.W != buf.w || start+a.Block.N > buf.rows {
		d.logger.Warn("skipping batch outside buffer",
			slog.String("label", a.Label),
			slog.Int("source", a.SourceIndex))
		return false
	}

	// Disjoint slice: no other batch addresses these rows, so the pixel
	// copy needs no lock.
	size := buf.h * buf.w
	copy(buf.data[start*size:], a.Block.Data)

	d.mu.Lock()
	for i, gi := range a.Indexes {
		if i >= a.Block.N {
			break
		}
		d.indexes[start+i] = gi
		d.loaded.Add(uint32(start + i))
	}
	d.events = append(d.events, model.Event{Kind: model.EventChanged, Index: a.SourceIndex})
	d.mu.Unlock()

	return true
}

// AssembledIndexes returns the global pattern indices of the rows loaded so
// far, in buffer-row order. While loading is in progress this is a strict
// subset of the full index set.
func (d *Dataset) AssembledIndexes() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]int64, 0, d.loaded.GetCardinality())
	it := d.loaded.Iterator()
	for it.HasNext() {
		out = append(out, d.indexes[it.Next()])
	}
	return out
}

// AssembledPatterns returns a copy of the loaded buffer rows, in buffer-row
// order, as one N x H x W block.
func (d *Dataset) AssembledPatterns() *model.Block {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := model.NewBlock(int(d.loaded.GetCardinality()), d.buf.h, d.buf.w)
	n := 0
	it := d.loaded.Iterator()
	for it.HasNext() {
		copy(out.Frame(n), d.buf.row(int(it.Next())))
		n++
	}
	return out
}

// Metadata returns the current dataset description.
func (d *Dataset) Metadata() model.Metadata {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.meta
}

// ProcessedExtent returns the per-frame extent of the buffer.
func (d *Dataset) ProcessedExtent() model.Extent2D {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.extent
}

// Len returns the number of source arrays appended since the last reload.
func (d *Dataset) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.arrays)
}

// At returns the facade for the i-th source array.
func (d *Dataset) At(i int) (model.PatternArray, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i < 0 || i >= len(d.arrays) {
		return nil, fmt.Errorf("assemble: array index %d out of range [0,%d)", i, len(d.arrays))
	}
	return d.arrays[i], nil
}

// DrainEvents returns and clears the pending change events. It is the
// check-and-clear pump for observers: events are set from any goroutine but
// handed out only here, on the owner's thread.
func (d *Dataset) DrainEvents() []model.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	ev := d.events
	d.events = nil
	return ev
}

// Clear stops loading without finishing and resets to an empty
// metadata/buffer pair. Emits a Reloaded event.
func (d *Dataset) Clear() {
	d.loader.Stop(false)

	d.mu.Lock()
	old, oldCharged := d.buf, d.charged
	d.meta = model.Metadata{}
	d.extent = model.Extent2D{}
	d.buf = &buffer{}
	d.charged = 0
	d.indexes = nil
	d.loaded = roaring.New()
	d.arrays = nil
	d.events = append(d.events, model.Event{Kind: model.EventReloaded})
	d.mu.Unlock()

	d.release(old, oldCharged)
}

// Close releases the buffer mapping. The dataset is unusable afterwards.
func (d *Dataset) Close() error {
	d.loader.Stop(false)

	d.mu.Lock()
	old, oldCharged := d.buf, d.charged
	d.buf = &buffer{}
	d.charged = 0
	d.mu.Unlock()

	if old == nil {
		return nil
	}
	d.controller.ReleaseMemory(oldCharged)
	return old.close()
}

func (d *Dataset) release(old *buffer, charged int64) {
	if old != nil {
		if err := old.close(); err != nil {
			d.logger.Warn("releasing pattern buffer", slog.Any("error", err))
		}
	}
	d.controller.ReleaseMemory(charged)
}
