package datatree

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/simplechan/internal/config"
)

// NodeType distinguishes composite nodes from valued ones.
type NodeType int

const (
	// NodeGroup is a composite node holding other nodes.
	NodeGroup NodeType = iota
	// NodeLeaf is an independently valued node.
	NodeLeaf
)

func (t NodeType) String() string {
	if t == NodeGroup {
		return "group"
	}
	return "leaf"
}

// Node is a single element of a subsystem's tree.
type Node struct {
	// Name is the node's own name; Path is its dotted path from the root.
	Name string
	Path string
	Type NodeType

	// Leaf attributes.
	Kind     config.Kind
	Number   int
	Register int
	// Phys is the resolved physical-channel address, nil when the node has none.
	Phys     *config.PhysChannel
	Min      float64
	Max      float64
	HasRange bool
	ReadOnly bool

	Children []*Node

	tree  *Tree
	value float64
	expr  hcl.Expression
}

// Value returns the node's last known value.
func (n *Node) Value() float64 {
	return n.value
}

// IsGroup reports whether n is composite.
func (n *Node) IsGroup() bool {
	return n.Type == NodeGroup
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}
