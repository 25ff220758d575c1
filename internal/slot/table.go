package slot

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfSlots is returned by Allocate when the table is full and may not grow.
	ErrOutOfSlots = errors.New("no free slots")
	// ErrInvalidHandle is returned for out-of-range or released handles.
	ErrInvalidHandle = errors.New("invalid handle")
)

// DefaultIncrement is the growth step used when none is configured.
const DefaultIncrement = 2

type entry[T any] struct {
	inUse bool
	rec   T
}

// Table is a growable array of records with per-slot "in use" flags.
type Table[T any] struct {
	entries   []entry[T]
	increment int
	max       int
	finalize  func(h int, rec *T)
}

// Option configures a Table.
type Option[T any] func(*Table[T])

// WithIncrement sets the growth step. Values below 2 are raised to 2 so that an
// empty table grows straight to two slots.
func WithIncrement[T any](n int) Option[T] {
	return func(t *Table[T]) { t.increment = n }
}

// WithMax caps the number of slots. Zero means unlimited.
func WithMax[T any](n int) Option[T] {
	return func(t *Table[T]) { t.max = n }
}

// WithFinalizer registers a function run by Release before the slot is freed.
func WithFinalizer[T any](fn func(h int, rec *T)) Option[T] {
	return func(t *Table[T]) { t.finalize = fn }
}

// New creates an empty table.
func New[T any](opts ...Option[T]) *Table[T] {
	t := &Table[T]{increment: DefaultIncrement}
	for _, opt := range opts {
		opt(t)
	}
	if t.increment < DefaultIncrement {
		t.increment = DefaultIncrement
	}
	return t
}

// Allocate returns the handle of the first free slot, growing the table if
// needed. The record behind the handle is zeroed.
func (t *Table[T]) Allocate() (int, error) {
	for {
		for h := range t.entries {
			if !t.entries[h].inUse {
				var zero T
				t.entries[h] = entry[T]{inUse: true, rec: zero}
				return h, nil
			}
		}
		if err := t.grow(); err != nil {
			return -1, err
		}
	}
}

func (t *Table[T]) grow() error {
	size := len(t.entries) + t.increment
	if t.max > 0 && size > t.max {
		size = t.max
	}
	if size <= len(t.entries) {
		return fmt.Errorf("%w: table limit %d reached", ErrOutOfSlots, t.max)
	}
	grown := make([]entry[T], size)
	copy(grown, t.entries)
	t.entries = grown
	return nil
}

// Release frees the slot behind h, running the finalizer first. Releasing a
// handle that is out of range or not in use has no effect besides the error.
func (t *Table[T]) Release(h int) error {
	if !t.InUse(h) {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	if t.finalize != nil {
		t.finalize(h, &t.entries[h].rec)
	}
	var zero T
	t.entries[h] = entry[T]{rec: zero}
	return nil
}

// Access returns the record behind a live handle.
func (t *Table[T]) Access(h int) (*T, bool) {
	if !t.InUse(h) {
		return nil, false
	}
	return &t.entries[h].rec, true
}

// InUse reports whether h refers to a live slot.
func (t *Table[T]) InUse(h int) bool {
	return h >= 0 && h < len(t.entries) && t.entries[h].inUse
}

// Find scans live slots in ascending handle order and returns the first one for
// which pred reports true.
func (t *Table[T]) Find(pred func(h int, rec *T) bool) (int, bool) {
	for h := range t.entries {
		if t.entries[h].inUse && pred(h, &t.entries[h].rec) {
			return h, true
		}
	}
	return -1, false
}

// Each calls fn for every live slot in ascending handle order.
func (t *Table[T]) Each(fn func(h int, rec *T)) {
	for h := range t.entries {
		if t.entries[h].inUse {
			fn(h, &t.entries[h].rec)
		}
	}
}

// Len returns the number of slots, live or not.
func (t *Table[T]) Len() int {
	return len(t.entries)
}

// Count returns the number of live slots.
func (t *Table[T]) Count() int {
	n := 0
	for h := range t.entries {
		if t.entries[h].inUse {
			n++
		}
	}
	return n
}
