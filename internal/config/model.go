package config

import "github.com/hashicorp/hcl/v2"

// Kind describes where a channel's value comes from.
type Kind string

const (
	// KindDirect channels mirror a channel of the subsystem's data source.
	KindDirect Kind = "direct"
	// KindRegister channels live in the subsystem's scratch-register bank.
	KindRegister Kind = "register"
	// KindCalc channels are computed from other channels on every tick.
	KindCalc Kind = "calc"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDirect, KindRegister, KindCalc:
		return true
	}
	return false
}

// Description is the unified, format-agnostic representation of a subsystem.
type Description struct {
	Subsystem     string
	DefaultSource string
	Source        string // file (or other origin) the description came from

	// PhysInfo is the physical-channel table. When PhysInfoInline is set the
	// table becomes the process-wide physical-info database; otherwise it is
	// attached to the subsystem's own binding.
	PhysInfo       []PhysChannel
	PhysInfoInline bool

	Groups []*GroupDef
}

// PhysChannel describes the address of a channel on an external data source.
type PhysChannel struct {
	Name   string
	Source string
	Number int
}

// GroupDef is a composite node of the grouping definition.
type GroupDef struct {
	Name     string
	Groups   []*GroupDef
	Channels []*ChannelDef
}

// ChannelDef is a leaf node of the grouping definition.
type ChannelDef struct {
	Name     string
	Kind     Kind
	Number   int // channel number on the data source (direct) or big-channel number
	Register int // scratch register index (register)
	PhysChan string
	Initial  float64
	Min      float64
	Max      float64
	HasRange bool
	ReadOnly bool
	Expr     hcl.Expression // calc only
}

// FindPhys returns the entry of table named name.
func FindPhys(table []PhysChannel, name string) (PhysChannel, bool) {
	for _, pc := range table {
		if pc.Name == name {
			return pc, true
		}
	}
	return PhysChannel{}, false
}
