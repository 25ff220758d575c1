package propagation

import (
	"errors"

	"github.com/specialistvlad/simplechan/internal/config"
)

var (
	ErrUnknownBinding = errors.New("unknown binding")
	ErrUnknownBig     = errors.New("unknown big-channel handle")
	ErrUnreachable    = errors.New("source unreachable")
	ErrWrongMode      = errors.New("binding mode does not allow this operation")
	ErrOutOfBounds    = errors.New("range out of bounds")
	ErrShortBuffer    = errors.New("buffer shorter than requested size")
)

// BindingID identifies an open binding.
type BindingID int

// BigHandle identifies a big-channel attachment on a binding.
type BigHandle int

// Mode selects what a binding carries.
type Mode int

const (
	// ModeRegular bindings carry scalar channel values.
	ModeRegular Mode = iota
	// ModeBig bindings carry big-channel buffers.
	ModeBig
)

func (m Mode) String() string {
	if m == ModeBig {
		return "big"
	}
	return "regular"
}

// CachePolicy controls buffer sharing between big-channel attachments.
type CachePolicy int

const (
	// CacheSharable shares one buffer per (source, channel number).
	CacheSharable CachePolicy = iota
	// CachePrivate gives every attachment its own buffer.
	CachePrivate
)

// Delivery controls whether writes to a big channel are announced to big
// bindings on the next tick.
type Delivery int

const (
	DeliverImmediate Delivery = iota
	DeliverDeferred
)

// TickHandler is called once per tick for every started binding. reason is
// the engine's tick sequence number.
type TickHandler func(id BindingID, reason int)

// Binder opens bindings to data sources and moves scalar values.
type Binder interface {
	Open(ref string, h TickHandler, mode Mode) (BindingID, error)
	Start(id BindingID) error
	Close(id BindingID) error

	// RegisterPhysInfoDB installs the process-wide physical-info database,
	// replacing any previous one. nil clears it.
	RegisterPhysInfoDB(table []config.PhysChannel)
	// SetPhysInfo attaches a physical-info table to one binding.
	SetPhysInfo(id BindingID, table []config.PhysChannel) error
	// LookupPhys resolves a physical channel name for a binding: the
	// binding's own table first, then the process-wide database.
	LookupPhys(id BindingID, name string) (config.PhysChannel, bool)

	Value(id BindingID, n int) (float64, bool)
	Write(id BindingID, n int, v float64) error
}

// BigTransport moves big-channel payloads and parameters.
type BigTransport interface {
	OpenBig(id BindingID, n, paramSlots, maxSize int, cache CachePolicy, delivery Delivery) (BigHandle, error)
	ReadBig(h BigHandle, ofs, size int, buf []byte) (int, error)
	WriteBig(h BigHandle, ofs, size int, buf []byte, units int) (int, error)
	// BigStats returns the buffer's age in ticks since its last write and its
	// result flags. ok is false while no data has been written.
	BigStats(h BigHandle) (age, flags int, ok bool, err error)
	GetBigParams(h BigHandle, idx int, vals []int32) (int, error)
	SetBigParams(h BigHandle, idx int, vals []int32) (int, error)
}

// Engine is everything the channel registry needs from a propagation engine.
type Engine interface {
	Binder
	BigTransport
}

// BindingSource adapts one binding to the node tree's Source and PhysResolver
// contracts.
type BindingSource struct {
	Binder Binder
	ID     BindingID
}

func (s BindingSource) Value(n int) (float64, bool) {
	return s.Binder.Value(s.ID, n)
}

func (s BindingSource) Write(n int, v float64) error {
	return s.Binder.Write(s.ID, n, v)
}

func (s BindingSource) LookupPhys(name string) (config.PhysChannel, bool) {
	return s.Binder.LookupPhys(s.ID, name)
}
