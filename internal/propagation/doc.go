// Package propagation defines the data-propagation contracts consumed by the
// channel registry and provides Local, an in-process implementation.
//
// A binding connects a client to a data source (named by a reference string;
// "" is the local, registry-internal source) and delivers ticks to the
// binding's handler. Regular bindings carry scalar channel values; big
// bindings carry binary buffers with integer parameter slots and freshness
// stats.
//
// Local keeps every source in memory. Ticks are driven explicitly with Tick and
// TickAll, or periodically with Run. Handlers are always called outside the
// engine lock, from the goroutine that drives the tick.
package propagation
