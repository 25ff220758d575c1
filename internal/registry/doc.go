// Package registry maps dotted channel names ("subsystem.node") to integer
// handles.
//
// A subsystem is instantiated lazily the first time one of its channels is
// registered: its description is loaded, bound to a data source through the
// propagation engine and turned into a node tree. Scalar and big channels are
// registered against nodes of that tree and carry optional callbacks. Every
// tick of a subsystem's binding refreshes its tree and then runs the scalar
// callbacks followed by the big-channel callbacks, most recent registration
// first.
//
// A Registry is not safe for concurrent use. Registration and value access are
// expected to happen on the goroutine that drives the engine's ticks, or be
// serialized externally.
package registry
