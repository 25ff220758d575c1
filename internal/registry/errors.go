package registry

import "errors"

// InvalidHandle is returned in place of a handle by every failed registration.
const InvalidHandle = -1

var (
	ErrInvalidName   = errors.New("invalid channel name")
	ErrNotFound      = errors.New("channel not found")
	ErrWrongNodeKind = errors.New("node is not a channel")
	ErrLoad          = errors.New("cannot load subsystem")
	ErrBind          = errors.New("cannot bind to data source")
	ErrAlloc         = errors.New("cannot allocate handle")
	ErrInvalidHandle = errors.New("invalid handle")
)
