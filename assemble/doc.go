// Package assemble owns the assembled pattern store: the metadata, the
// index array and the single large processed-pattern buffer shared by all
// source arrays.
//
// Each source array is assigned a disjoint, statically-known row range in
// the buffer at append time, so worker output can be folded in without any
// lock around the pixel data itself. Only the index-array update, the facade
// list and the event list take a short critical section.
//
// The buffer is backed either by anonymous memory or by a memory-mapped
// scratch file, chosen per reload. A new buffer and index array replace the
// old pair atomically from the observers' point of view.
package assemble
