// Package diffra ingests diffraction-pattern frames from an area detector,
// applies a per-frame geometric and intensity transformation pipeline, and
// assembles the results into one large, randomly-indexable pattern store for
// downstream reconstruction.
//
// # Pipeline
//
// An external reader (file-format plugin or live acquisition push) supplies
// pattern arrays labeled with global pattern indices. Each array is queued
// to a worker pool, transformed in parallel (crop, value filter, bin, pad,
// flips), and written into the assembled buffer at the disjoint row slice
// implied by its indices. Because every source array owns a pre-assigned,
// non-overlapping slice, the buffer itself needs no lock; arrays may finish
// out of submission order without affecting the final index layout.
//
// # Quick Start
//
//	settings := diffra.DefaultSettings(model.Extent2D{Width: 128, Height: 128})
//	session, err := diffra.New(settings)
//	if err != nil {
//	    panic(err)
//	}
//	defer session.Close()
//
//	if err := session.Start(ctx); err != nil {
//	    panic(err)
//	}
//	for _, array := range arrays {
//	    session.AppendArray(array)
//	}
//	session.Stop() // drain, join workers, final assemble
//
//	indexes := session.AssembledIndexes()
//	patterns := session.AssembledPatterns()
//
// # Persistence
//
// Assembled datasets export to a zip-of-arrays archive ("indexes" and
// "patterns" entries, numpy-readable) via ExportFile/ImportFile, or to any
// blobstore.Store via ExportToStore/ImportFromStore.
package diffra

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/hupe1980/diffra/archive"
	"github.com/hupe1980/diffra/assemble"
	"github.com/hupe1980/diffra/blobstore"
	"github.com/hupe1980/diffra/loader"
	"github.com/hupe1980/diffra/model"
	"github.com/hupe1980/diffra/process"
	"github.com/hupe1980/diffra/resource"
)

// Session is the streaming context: a thin sequencer over the loader worker
// pool and the assembled dataset, used for both bulk file reads and live
// acquisition.
type Session struct {
	settings   Settings
	logger     *Logger
	metrics    MetricsCollector
	controller *resource.Controller

	loader  *loader.Loader
	dataset *assemble.Dataset

	closed atomic.Bool
}

// New creates a Session from the given settings.
func New(settings Settings, optFns ...Option) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger:  NewLogger(nil),
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&o)
	}

	ld := loader.New(loader.Options{
		Workers:    settings.workers(),
		QueueBound: o.queueBound,
		Logger:     o.logger.Logger,
		Metrics:    metricsAdapter{o.metrics},
	})

	ds := assemble.New(assemble.Options{
		Loader:        ld,
		MemmapEnabled: settings.MemmapEnabled,
		ScratchDir:    settings.ScratchDir,
		Controller:    o.controller,
		Logger:        o.logger.Logger,
	})

	return &Session{
		settings:   settings,
		logger:     o.logger,
		metrics:    o.metrics,
		controller: o.controller,
		loader:     ld,
		dataset:    ds,
	}, nil
}

// BuildProcessor validates the pattern settings and returns the transform
// snapshot they describe. Configuration errors (bin divisor, crop window)
// surface here, before any worker starts.
func (s *Session) BuildProcessor() (*process.Processor, error) {
	p, err := s.settings.sizer().BuildProcessor()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}

// ProcessedExtent returns the per-frame extent the current settings produce.
func (s *Session) ProcessedExtent() (model.Extent2D, error) {
	p, err := s.BuildProcessor()
	if err != nil {
		return model.Extent2D{}, err
	}
	return p.OutputExtent(), nil
}

// Reload stops any in-flight loading and replaces the assembled dataset with
// a fresh buffer sized for ds under the current settings, then enqueues
// every source array of ds.
func (s *Session) Reload(ctx context.Context, ds model.Dataset) error {
	if s.closed.Load() {
		return ErrClosed
	}

	began := time.Now()

	extent, err := s.ProcessedExtent()
	if err != nil {
		s.metrics.RecordReload(0, time.Since(began), err)
		return err
	}

	err = s.dataset.Reload(ctx, ds, extent)
	s.metrics.RecordReload(ds.Metadata().NumPatternsTotal, time.Since(began), err)
	return err
}

// StartLoading snapshots the current settings into a Processor and starts
// the worker pool. Settings changed afterwards take effect only on the next
// StartLoading.
func (s *Session) StartLoading(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	p, err := s.BuildProcessor()
	if err != nil {
		return err
	}
	s.loader.Start(ctx, p)
	return nil
}

// Start begins a streaming session: reload with placeholder empty metadata,
// then start loading. Arrays appended afterwards are processed as they
// arrive.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Reload(ctx, model.EmptyDataset()); err != nil {
		return err
	}
	return s.StartLoading(ctx)
}

// StartWith begins a session over a known dataset: reload with its metadata
// and arrays, then start loading.
func (s *Session) StartWith(ctx context.Context, ds model.Dataset) error {
	if err := s.Reload(ctx, ds); err != nil {
		return err
	}
	return s.StartLoading(ctx)
}

// AppendArray enqueues one source array. With the default unbounded queue
// this never blocks the caller.
func (s *Session) AppendArray(array model.PatternArray) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.dataset.AppendArray(array)
}

// Assemble drains processed batches into the buffer without blocking and
// returns the number folded in. Typically called from a UI pump or by Stop.
func (s *Session) Assemble() int {
	began := time.Now()
	n := s.dataset.Assemble()
	s.metrics.RecordAssemble(n, time.Since(began))
	return n
}

// Stop blocks until the processing queue drains, joins every worker, then
// runs one final Assemble so no processed batch is left stranded in the
// assembly queue. A producer that never stops submitting keeps Stop blocked;
// monitor QueueSize and throttle producers externally.
func (s *Session) Stop() {
	s.loader.Stop(true)
	s.Assemble()
}

// Cancel discards queued-but-unprocessed work and joins the workers.
// In-flight items complete; their output is folded in by the final Assemble.
func (s *Session) Cancel() {
	s.loader.Stop(false)
	s.Assemble()
}

// QueueSize returns the combined processing and assembly queue depth, for
// back-pressure display. Unbounded queue growth under sustained overload is
// visible only here.
func (s *Session) QueueSize() int {
	return s.loader.QueueSize()
}

// LoaderState returns the worker pool lifecycle state.
func (s *Session) LoaderState() loader.State {
	return s.loader.State()
}

// Metadata returns the current dataset description.
func (s *Session) Metadata() model.Metadata {
	return s.dataset.Metadata()
}

// AssembledIndexes returns the global indices of the rows loaded so far.
func (s *Session) AssembledIndexes() []int64 {
	return s.dataset.AssembledIndexes()
}

// AssembledPatterns returns a copy of the loaded buffer rows.
func (s *Session) AssembledPatterns() *model.Block {
	return s.dataset.AssembledPatterns()
}

// ArrayCount returns the number of source arrays appended since the last
// reload.
func (s *Session) ArrayCount() int {
	return s.dataset.Len()
}

// ArrayAt returns the read-only facade for the i-th source array.
func (s *Session) ArrayAt(i int) (model.PatternArray, error) {
	return s.dataset.At(i)
}

// DrainEvents returns and clears pending dataset change events. Call it from
// the owning (UI) thread; worker goroutines never invoke observers directly.
func (s *Session) DrainEvents() []model.Event {
	return s.dataset.DrainEvents()
}

// Clear stops loading without finishing and resets to an empty dataset.
func (s *Session) Clear() {
	s.dataset.Clear()
}

// Export writes the loaded subset as a zip-of-arrays archive.
func (s *Session) Export(w io.Writer) error {
	began := time.Now()
	cw := &countingWriter{w: w}
	err := archive.Write(cw, s.AssembledIndexes(), s.AssembledPatterns())
	s.metrics.RecordExport(cw.n, time.Since(began), err)
	return err
}

// ExportFile writes the archive to a file path.
func (s *Session) ExportFile(path string) error {
	began := time.Now()
	err := archive.WriteFile(path, s.AssembledIndexes(), s.AssembledPatterns())
	s.metrics.RecordExport(0, time.Since(began), err)
	return err
}

// ExportToStore publishes the archive to a blob store under name.
func (s *Session) ExportToStore(ctx context.Context, store blobstore.Store, name string) error {
	began := time.Now()
	err := archive.Upload(ctx, store, name, s.AssembledIndexes(), s.AssembledPatterns(), s.controller)
	s.metrics.RecordExport(0, time.Since(began), err)
	return err
}

// ImportFile restores a previously exported archive, replacing the current
// dataset. The restored indexes and patterns match the exported ones byte
// for byte.
func (s *Session) ImportFile(ctx context.Context, path string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	indexes, patterns, err := archive.ReadFile(path)
	if err != nil {
		return err
	}
	return s.restore(ctx, path, indexes, patterns)
}

// ImportFromStore restores an archive from a blob store.
func (s *Session) ImportFromStore(ctx context.Context, store blobstore.Store, name string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	indexes, patterns, err := archive.Download(ctx, store, name, s.controller)
	if err != nil {
		return err
	}
	return s.restore(ctx, name, indexes, patterns)
}

// restore feeds archived (already processed) patterns through an identity
// pipeline sized to the archive, so the normal disjoint-slice assembly path
// places them.
func (s *Session) restore(ctx context.Context, label string, indexes []int64, patterns *model.Block) error {
	if s.closed.Load() {
		return ErrClosed
	}

	meta := model.Metadata{
		NumPatternsTotal:    patterns.N,
		NumPatternsPerArray: patterns.N,
		DetectorExtent:      patterns.Extent(),
		FilePath:            label,
	}
	ds := &model.SimpleDataset{
		Meta: meta,
		Sources: []model.PatternArray{
			&model.SimpleArray{ArrayLabel: label, ArrayIndexes: indexes, Block: patterns},
		},
	}

	identity, err := process.New(process.Config{DetectorExtent: patterns.Extent()})
	if err != nil {
		return err
	}

	if err := s.dataset.Reload(ctx, ds, patterns.Extent()); err != nil {
		return err
	}
	s.loader.Start(ctx, identity)
	s.loader.Stop(true)
	s.Assemble()
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// metricsAdapter bridges the root MetricsCollector to the loader's
// per-worker observation interface.
type metricsAdapter struct {
	mc MetricsCollector
}

func (a metricsAdapter) RecordProcess(d time.Duration, err error) { a.mc.RecordProcess(d, err) }
func (a metricsAdapter) RecordDrop(label string)                  { a.mc.RecordDrop(label) }
