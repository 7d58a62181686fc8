package process

import (
	"fmt"

	"github.com/hupe1980/diffra/model"
)

// ErrBinDivisor indicates a bin size that does not evenly divide the cropped
// frame extent along one axis.
type ErrBinDivisor struct {
	Axis   string
	Extent int
	Bin    int
}

func (e *ErrBinDivisor) Error() string {
	return fmt.Sprintf("bin size %d does not evenly divide %s extent %d", e.Bin, e.Axis, e.Extent)
}

// ErrCropWindow indicates a crop window that does not fit inside the
// detector frame.
type ErrCropWindow struct {
	Center   model.Point2D
	Window   model.Extent2D
	Detector model.Extent2D
}

func (e *ErrCropWindow) Error() string {
	return fmt.Sprintf("crop window %s centered at (%d,%d) exceeds detector extent %s",
		e.Window, e.Center.X, e.Center.Y, e.Detector)
}

// ErrFrameShape indicates an input batch whose per-frame extent does not
// match the configured detector extent.
type ErrFrameShape struct {
	Expected model.Extent2D
	Actual   model.Extent2D
}

func (e *ErrFrameShape) Error() string {
	return fmt.Sprintf("frame shape mismatch: expected %s, got %s", e.Expected, e.Actual)
}
