// Package geometry derives the processed frame shape and the Processor
// configuration from detector and pattern settings.
package geometry

import (
	"github.com/hupe1980/diffra/model"
	"github.com/hupe1980/diffra/process"
)

// Sizer is a pure function of detector and pattern settings. It computes the
// processed frame extent, a safe crop center, and builds the Processor used
// by the loader.
type Sizer struct {
	// DetectorExtent is the unprocessed detector frame extent in pixels.
	DetectorExtent model.Extent2D

	CropEnabled bool
	// CropCenter is the requested crop center. It is clamped so the crop
	// window always stays inside the detector.
	CropCenter model.Point2D
	CropExtent model.Extent2D

	BinEnabled bool
	BinX, BinY int

	PadEnabled bool
	PadX, PadY int

	FlipXEnabled bool
	FlipYEnabled bool

	LowerBoundEnabled bool
	LowerBound        uint32
	UpperBoundEnabled bool
	UpperBound        uint32
}

// SafeAxisCenter clamps a requested crop center along one axis so that the
// window lies within [0, extent). When the window cannot fit at the
// requested position the center is pushed to the nearest valid position;
// when no position is valid (window wider than the detector) the midrange
// is returned. This exact policy is what prevents out-of-bounds slicing
// downstream.
func SafeAxisCenter(requested, window, extent int) int {
	lo := window / 2
	hi := extent - 1 - window/2
	if hi < lo {
		return extent / 2
	}
	if requested < lo {
		return lo
	}
	if requested > hi {
		return hi
	}
	return requested
}

// SafeCropCenter clamps the configured crop center on both axes.
func (s Sizer) SafeCropCenter() model.Point2D {
	return model.Point2D{
		X: SafeAxisCenter(s.CropCenter.X, s.CropExtent.Width, s.DetectorExtent.Width),
		Y: SafeAxisCenter(s.CropCenter.Y, s.CropExtent.Height, s.DetectorExtent.Height),
	}
}

// ProcessedExtent returns the frame extent after cropping: the full detector
// extent when cropping is disabled, otherwise the configured window clamped
// to [1, detector extent] per axis.
func (s Sizer) ProcessedExtent() model.Extent2D {
	if !s.CropEnabled {
		return s.DetectorExtent
	}
	return model.Extent2D{
		Width:  clamp(s.CropExtent.Width, 1, s.DetectorExtent.Width),
		Height: clamp(s.CropExtent.Height, 1, s.DetectorExtent.Height),
	}
}

// BuildProcessor snapshots the current settings into an immutable Processor.
// Configuration errors (bin divisor, malformed crop window) are returned
// here, before any worker thread starts.
func (s Sizer) BuildProcessor() (*process.Processor, error) {
	extent := s.ProcessedExtent()
	return process.New(process.Config{
		DetectorExtent: s.DetectorExtent,

		CropEnabled: s.CropEnabled,
		CropCenter: model.Point2D{
			X: SafeAxisCenter(s.CropCenter.X, extent.Width, s.DetectorExtent.Width),
			Y: SafeAxisCenter(s.CropCenter.Y, extent.Height, s.DetectorExtent.Height),
		},
		CropExtent: extent,

		LowerBoundEnabled: s.LowerBoundEnabled,
		LowerBound:        s.LowerBound,
		UpperBoundEnabled: s.UpperBoundEnabled,
		UpperBound:        s.UpperBound,

		BinEnabled: s.BinEnabled,
		BinX:       s.BinX,
		BinY:       s.BinY,

		PadEnabled: s.PadEnabled,
		PadX:       s.PadX,
		PadY:       s.PadY,

		FlipYEnabled: s.FlipYEnabled,
		FlipXEnabled: s.FlipXEnabled,
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
