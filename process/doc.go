// Package process implements the per-frame transformation pipeline applied to
// raw detector frames before assembly.
//
// The pipeline order is fixed: crop, value filter, binning, padding, flip-Y,
// flip-X. Downstream geometry (crop center, pixel size) is computed against
// the post-bin/pre-pad frame, so the order must not be reassociated.
//
// A Processor is an immutable configuration snapshot. All parameter
// validation happens in New, before any worker thread starts; Process never
// discovers a configuration error mid-stream.
package process
