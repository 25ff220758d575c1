// Package config defines the format-agnostic model of a subsystem description,
// along with the Loader interface that turns a subsystem name into one.
//
// A description names the subsystem's default data source, its physical-channel
// table and a grouping definition (a tree of groups and channels). The
// `datatree` package builds the live node tree from it. Concrete loaders, such
// as the HCL one, live in separate packages.
package config
