// Package app contains the channel monitor's application logic. It wires the
// description loader, the propagation engine and the channel registry
// together and drives them for a configured set of watched and written
// channels, decoupled from any specific entrypoint like a CLI.
package app
