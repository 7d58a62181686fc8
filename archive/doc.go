// Package archive persists assembled datasets.
//
// The reference form is a zip-of-arrays container holding two named arrays,
// "indexes" (int64, 1-D) and "patterns" (uint32, N x H x W), each serialized
// as an NPY v1.0 entry. Import is the exact structural inverse of export, so
// a round trip reproduces both arrays byte for byte, and the container stays
// readable by numpy.
//
// A second, LZ4-framed snapshot form exists for fast local scratch
// persistence where zip overhead is unwanted.
package archive
