// Package datatree builds and operates the live node tree of a loaded
// subsystem.
//
// A tree is built from a description's grouping definition. Group nodes are
// composite and carry no value; leaf nodes carry a float64 value that is
// refreshed by Process on every propagation tick:
//
//   - direct leaves mirror a channel of the subsystem's data source,
//   - register leaves mirror a slot of the subsystem's scratch-register bank,
//   - calc leaves evaluate an HCL expression over the other leaves.
//
// SetValue is the single-node write operation used by channel setters.
package datatree
