// Package slot provides a growable table of fixed-layout records addressed by
// small integer handles.
//
// A handle is the record's index in the backing array. It stays valid until the
// record is released; after that the same handle may be returned by a later
// Allocate, so callers must not keep a handle across a release. The table never
// shrinks.
//
// Pointers returned by Access refer into the backing array and are only valid
// until the next Allocate, which may grow (and move) it.
package slot
