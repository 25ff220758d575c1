package datatree

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/nodeid"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrDestroyed    = errors.New("tree destroyed")
	ErrBuild        = errors.New("cannot build node tree")
)

// Source is the data source direct leaves read from and write through.
type Source interface {
	// Value returns the current value of channel n, if the source has one.
	Value(n int) (float64, bool)
	// Write asks the source to set channel n to v.
	Write(n int, v float64) error
}

// PhysResolver resolves physical-channel names referenced by leaves.
type PhysResolver interface {
	LookupPhys(name string) (config.PhysChannel, bool)
}

// Tree is the live node tree of one subsystem.
type Tree struct {
	root      *Node
	src       Source
	leaves    []*Node // build order
	calcs     []*Node
	destroyed bool
}

// Build creates a tree from a grouping definition. Leaves start at their
// initial value.
func Build(ctx context.Context, src Source, groups []*config.GroupDef, phys PhysResolver) (*Tree, error) {
	logger := ctxlog.FromContext(ctx)

	t := &Tree{src: src, root: &Node{Type: NodeGroup}}
	for _, g := range groups {
		if t.root.child(g.Name) != nil {
			return nil, fmt.Errorf("%w: duplicate group %q", ErrBuild, g.Name)
		}
		n, err := t.buildGroup(g, "", phys)
		if err != nil {
			return nil, err
		}
		t.root.Children = append(t.root.Children, n)
	}

	if err := t.checkExpressions(); err != nil {
		return nil, err
	}
	calcs, err := t.orderCalcs()
	if err != nil {
		return nil, err
	}
	t.calcs = calcs

	logger.Debug("Node tree built.", "leaves", len(t.leaves), "calc", len(t.calcs))
	return t, nil
}

func (t *Tree) buildGroup(g *config.GroupDef, prefix string, phys PhysResolver) (*Node, error) {
	n := &Node{Name: g.Name, Path: joinPath(prefix, g.Name), Type: NodeGroup, tree: t}

	for _, sub := range g.Groups {
		c, err := t.buildGroup(sub, n.Path, phys)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}

	for _, cd := range g.Channels {
		leaf, err := t.buildLeaf(cd, n.Path, phys)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, leaf)
	}
	return n, nil
}

func (t *Tree) buildLeaf(cd *config.ChannelDef, prefix string, phys PhysResolver) (*Node, error) {
	n := &Node{
		Name:     cd.Name,
		Path:     joinPath(prefix, cd.Name),
		Type:     NodeLeaf,
		Kind:     cd.Kind,
		Number:   cd.Number,
		Register: cd.Register,
		Min:      cd.Min,
		Max:      cd.Max,
		HasRange: cd.HasRange,
		ReadOnly: cd.ReadOnly || cd.Kind == config.KindCalc,
		tree:     t,
		value:    cd.Initial,
		expr:     cd.Expr,
	}

	if n.Kind == config.KindRegister && (n.Register < 0 || n.Register >= NumRegisters) {
		return nil, fmt.Errorf("%w: %s: register %d outside 0..%d", ErrBuild, n.Path, n.Register, NumRegisters-1)
	}
	if n.Kind == config.KindCalc && n.expr == nil {
		return nil, fmt.Errorf("%w: %s: calc node without expression", ErrBuild, n.Path)
	}

	if cd.PhysChan != "" {
		if phys == nil {
			return nil, fmt.Errorf("%w: %s: no physical-info source for %q", ErrBuild, n.Path, cd.PhysChan)
		}
		pc, ok := phys.LookupPhys(cd.PhysChan)
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown physical channel %q", ErrBuild, n.Path, cd.PhysChan)
		}
		n.Phys = &pc
	}

	t.leaves = append(t.leaves, n)
	if n.Kind == config.KindCalc {
		t.calcs = append(t.calcs, n)
	}
	return n, nil
}

// Find resolves a dotted node path. A single-segment path that does not name a
// top-level node is looked up depth-first by name.
func (t *Tree) Find(path string) (*Node, error) {
	if t == nil || t.destroyed {
		return nil, ErrDestroyed
	}
	p, err := nodeid.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, err)
	}

	n := t.root
	for _, seg := range p.Segments {
		if n = n.child(seg); n == nil {
			break
		}
	}
	if n != nil {
		return n, nil
	}

	if len(p.Segments) == 1 {
		if found := findByName(t.root, p.Segments[0]); found != nil {
			return found, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, path)
}

func findByName(n *Node, name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if found := findByName(c, name); found != nil {
			return found
		}
	}
	return nil
}

// Leaves returns the tree's leaves in build order.
func (t *Tree) Leaves() []*Node {
	return t.leaves
}

// Destroy releases the tree. Nodes obtained earlier keep their last values but
// are no longer refreshed or writable.
func (t *Tree) Destroy() {
	if t == nil || t.destroyed {
		return
	}
	t.destroyed = true
	t.src = nil
	t.root = &Node{Type: NodeGroup}
	t.leaves = nil
	t.calcs = nil
}

// Process refreshes every leaf once: direct and register leaves first, then
// calc leaves in dependency order. reason identifies the tick's cause and is only
// logged.
func (t *Tree) Process(ctx context.Context, reason int, regs *Registers) {
	if t == nil || t.destroyed {
		return
	}
	for _, n := range t.leaves {
		switch n.Kind {
		case config.KindDirect:
			if t.src == nil {
				continue
			}
			if v, ok := t.src.Value(n.Number); ok {
				n.value = v
			}
		case config.KindRegister:
			if regs == nil {
				continue
			}
			if v, ok := regs.Get(n.Register); ok {
				n.value = v
			}
		}
	}
	if len(t.calcs) > 0 {
		t.evalCalcs(ctx, reason)
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
