package diffra

import (
	"errors"

	"github.com/hupe1980/diffra/process"
)

var (
	// ErrClosed is returned when operating on a closed Session.
	ErrClosed = errors.New("session is closed")

	// ErrInvalidConfig unifies configuration errors raised before the
	// worker pool starts: bad bin divisors, malformed crop windows,
	// invalid detector extents.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsConfigError reports whether err stems from pattern-settings validation.
// Configuration errors always surface at Processor/Sizer construction,
// never mid-stream.
func IsConfigError(err error) bool {
	if errors.Is(err, ErrInvalidConfig) {
		return true
	}
	var bin *process.ErrBinDivisor
	if errors.As(err, &bin) {
		return true
	}
	var crop *process.ErrCropWindow
	if errors.As(err, &crop) {
		return true
	}
	return false
}
