package diffra

import (
	"fmt"
	"runtime"

	"github.com/hupe1980/diffra/geometry"
	"github.com/hupe1980/diffra/model"
)

// Settings is the full settings surface consumed from the external
// configuration collaborator: detector geometry, the transform pipeline
// knobs, worker count and buffer backing.
type Settings struct {
	// Detector
	DetectorExtent    model.Extent2D
	DetectorDistanceM float64
	PixelSizeM        float64
	BitDepth          int

	// Crop
	CropEnabled bool
	CropCenter  model.Point2D
	CropExtent  model.Extent2D

	// Binning
	BinEnabled bool
	BinX, BinY int

	// Padding
	PadEnabled bool
	PadX, PadY int

	// Flips
	FlipXEnabled bool
	FlipYEnabled bool

	// Value thresholds
	LowerBoundEnabled bool
	LowerBound        uint32
	UpperBoundEnabled bool
	UpperBound        uint32

	// Workers is the loader worker thread count. 0 means NumCPU.
	Workers int

	// MemmapEnabled backs the pattern buffer with a scratch file under
	// ScratchDir instead of anonymous memory.
	MemmapEnabled bool
	ScratchDir    string
}

// DefaultSettings returns settings for a bare detector: no transforms, one
// worker per CPU, anonymous buffer backing.
func DefaultSettings(detector model.Extent2D) Settings {
	return Settings{
		DetectorExtent: detector,
		CropCenter:     model.Point2D{X: detector.Width / 2, Y: detector.Height / 2},
		CropExtent:     detector,
		BinX:           1,
		BinY:           1,
	}
}

// Validate checks the parts of the settings that do not depend on the
// pattern pipeline. Pipeline parameters are validated by the Sizer when the
// Processor is built.
func (s Settings) Validate() error {
	if s.DetectorExtent.Width <= 0 || s.DetectorExtent.Height <= 0 {
		return fmt.Errorf("%w: detector extent %s", ErrInvalidConfig, s.DetectorExtent)
	}
	if s.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrInvalidConfig, s.Workers)
	}
	if s.MemmapEnabled && s.ScratchDir == "" {
		return fmt.Errorf("%w: memmap enabled without scratch directory", ErrInvalidConfig)
	}
	return nil
}

func (s Settings) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

// sizer builds the geometry Sizer snapshot for these settings.
func (s Settings) sizer() geometry.Sizer {
	return geometry.Sizer{
		DetectorExtent: s.DetectorExtent,

		CropEnabled: s.CropEnabled,
		CropCenter:  s.CropCenter,
		CropExtent:  s.CropExtent,

		BinEnabled: s.BinEnabled,
		BinX:       s.BinX,
		BinY:       s.BinY,

		PadEnabled: s.PadEnabled,
		PadX:       s.PadX,
		PadY:       s.PadY,

		FlipXEnabled: s.FlipXEnabled,
		FlipYEnabled: s.FlipYEnabled,

		LowerBoundEnabled: s.LowerBoundEnabled,
		LowerBound:        s.LowerBound,
		UpperBoundEnabled: s.UpperBoundEnabled,
		UpperBound:        s.UpperBound,
	}
}
