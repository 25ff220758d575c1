package config

import "context"

// Handle is an opaque token returned by Loader.Open and given back to Close.
type Handle any

// LoadArgs carries the bootstrap arguments handed to a Loader.
type LoadArgs struct {
	// ProgramName is the invoking program's argv[0]. Loaders may derive
	// default search locations from it.
	ProgramName string
	// SearchPaths lists directories to look for descriptions in, in order.
	SearchPaths []string
}

// Loader is the interface for a format-specific subsystem description loader.
type Loader interface {
	// Open loads the description of the named subsystem. The returned handle
	// must be passed to Close once the description is no longer needed.
	Open(ctx context.Context, subsystem string, args LoadArgs) (Handle, *Description, error)

	// Close releases whatever Open acquired.
	Close(h Handle, d *Description) error
}
