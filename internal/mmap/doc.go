// Package mmap provides the memory mappings backing the assembled pattern
// buffer and read-only views of archive blobs.
//
// Three kinds of mapping exist:
//
//   - Anon: anonymous read-write memory, used when memmap backing is disabled
//   - CreateScratch: a read-write mapping of an owner-only temp file in the
//     configured scratch directory; the file is unlinked immediately after
//     mapping, so it disappears on release on every exit path
//   - Open: a read-only mapping of an existing file
//
// A Mapping owns its byte slice and is responsible for unmapping it. Close
// is idempotent; Bytes is valid only until Close.
package mmap
