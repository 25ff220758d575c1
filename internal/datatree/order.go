package datatree

import (
	"fmt"

	"github.com/specialistvlad/simplechan/internal/config"
)

// orderCalcs sorts the calc leaves so every calc comes after the calcs its
// expression reads. Independent calcs keep their build order. A reference
// cycle is a build error.
func (t *Tree) orderCalcs() ([]*Node, error) {
	deps := make(map[*Node][]*Node, len(t.calcs))
	for _, n := range t.calcs {
		for _, traversal := range n.expr.Variables() {
			if dep, ok := t.resolveTraversal(traversal); ok && dep.Kind == config.KindCalc {
				deps[n] = append(deps[n], dep)
			}
		}
	}

	// done: emitted. active: on the current DFS path.
	done := make(map[*Node]bool, len(t.calcs))
	active := make(map[*Node]bool)
	ordered := make([]*Node, 0, len(t.calcs))

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if done[n] {
			return nil
		}
		if active[n] {
			return fmt.Errorf("%w: cycle detected involving node %q", ErrBuild, n.Path)
		}
		active[n] = true
		for _, dep := range deps[n] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(active, n)
		done[n] = true
		ordered = append(ordered, n)
		return nil
	}

	for _, n := range t.calcs {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
