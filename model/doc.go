// Package model defines core types used throughout Diffra.
//
// # Data Types
//
//   - Metadata: immutable description of a dataset before pixel data exists
//   - Block: one batch of diffraction frames (N x H x W, uint32)
//   - PatternArray: capability interface over one unit of raw pattern data
//   - Dataset: a metadata + source-array pair as delivered by a file reader
//
// # Events
//
// Mutations of the assembled dataset are reported as typed Event values
// (EventInserted, EventChanged, EventReloaded) collected by the owner and
// drained on its own thread, so observers never run on a worker goroutine.
package model
