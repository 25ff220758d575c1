package datatree

import (
	"errors"
	"fmt"
)

// NumRegisters is the size of a subsystem's scratch-register bank.
const NumRegisters = 1000

// ErrRegisterRange is returned for register indexes outside the bank.
var ErrRegisterRange = errors.New("register index out of range")

// Registers is a fixed bank of scratch registers with per-register
// initialized flags.
type Registers struct {
	vals   [NumRegisters]float64
	inited [NumRegisters]bool
}

// Get returns register i and whether it was ever set.
func (r *Registers) Get(i int) (float64, bool) {
	if i < 0 || i >= NumRegisters {
		return 0, false
	}
	return r.vals[i], r.inited[i]
}

// Set stores v in register i and marks it initialized.
func (r *Registers) Set(i int, v float64) error {
	if i < 0 || i >= NumRegisters {
		return fmt.Errorf("%w: %d", ErrRegisterRange, i)
	}
	r.vals[i] = v
	r.inited[i] = true
	return nil
}

// Reset clears every register.
func (r *Registers) Reset() {
	*r = Registers{}
}
