// This file contains the HCL schema structs decoded by gohcl from a
// subsystem description file.

package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is the top level of a description file.
type fileRoot struct {
	Subsystem *subsystemBlock `hcl:"subsystem,block"`
	PhysInfo  *physInfoBlock  `hcl:"physinfo,block"`
	Groups    []*groupBlock   `hcl:"group,block"`
}

type subsystemBlock struct {
	DefaultSource string `hcl:"default_source,optional"`
}

type physInfoBlock struct {
	Inline   bool             `hcl:"inline,optional"`
	Channels []*physChanBlock `hcl:"channel,block"`
}

type physChanBlock struct {
	Name   string `hcl:"name,label"`
	Source string `hcl:"source"`
	Number int    `hcl:"number"`
}

type groupBlock struct {
	Name     string          `hcl:"name,label"`
	Groups   []*groupBlock   `hcl:"group,block"`
	Channels []*channelBlock `hcl:"channel,block"`
}

type channelBlock struct {
	Name     string         `hcl:"name,label"`
	Kind     *string        `hcl:"kind,optional"`
	Number   *int           `hcl:"number,optional"`
	Register *int           `hcl:"register,optional"`
	PhysChan *string        `hcl:"physchan,optional"`
	Initial  *float64       `hcl:"initial,optional"`
	Min      *float64       `hcl:"min,optional"`
	Max      *float64       `hcl:"max,optional"`
	ReadOnly *bool          `hcl:"readonly,optional"`
	Expr     hcl.Expression `hcl:"expr,optional"`
}
