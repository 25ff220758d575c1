package datatree

import (
	"context"
	"fmt"
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// calcFunctions are the functions available to calc expressions.
var calcFunctions = map[string]function.Function{
	"abs":    stdlib.AbsoluteFunc,
	"ceil":   stdlib.CeilFunc,
	"floor":  stdlib.FloorFunc,
	"log":    stdlib.LogFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"pow":    stdlib.PowFunc,
	"signum": stdlib.SignumFunc,
}

// checkExpressions verifies that every variable a calc expression references
// names a leaf of the tree.
func (t *Tree) checkExpressions() error {
	for _, n := range t.calcs {
		for _, traversal := range n.expr.Variables() {
			if _, ok := t.resolveTraversal(traversal); !ok {
				return fmt.Errorf("%w: %s: expression references unknown node %q",
					ErrBuild, n.Path, traversalString(traversal))
			}
		}
	}
	return nil
}

func (t *Tree) resolveTraversal(traversal hcl.Traversal) (*Node, bool) {
	n := t.root.child(traversal.RootName())
	for _, step := range traversal[1:] {
		if n == nil {
			return nil, false
		}
		attr, ok := step.(hcl.TraverseAttr)
		if !ok {
			return nil, false
		}
		n = n.child(attr.Name)
	}
	if n == nil || n.IsGroup() {
		return nil, false
	}
	return n, true
}

func traversalString(traversal hcl.Traversal) string {
	s := traversal.RootName()
	for _, step := range traversal[1:] {
		if attr, ok := step.(hcl.TraverseAttr); ok {
			s += "." + attr.Name
		}
	}
	return s
}

// evalContext exposes every top-level group as an object of its children,
// so `main.sub.current` in an expression reads that leaf's value.
func (t *Tree) evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(t.root.Children))
	for _, c := range t.root.Children {
		vars[c.Name] = nodeValue(c)
	}
	return &hcl.EvalContext{Variables: vars, Functions: calcFunctions}
}

func nodeValue(n *Node) cty.Value {
	if !n.IsGroup() {
		return cty.NumberFloatVal(n.value)
	}
	if len(n.Children) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(n.Children))
	for _, c := range n.Children {
		attrs[c.Name] = nodeValue(c)
	}
	return cty.ObjectVal(attrs)
}

func (t *Tree) evalCalcs(ctx context.Context, reason int) {
	logger := ctxlog.FromContext(ctx)

	for _, n := range t.calcs {
		// Rebuilt per node so later calcs see earlier results of this tick.
		v, err := evalNumber(n.expr, t.evalContext())
		if err != nil {
			logger.Warn("Calc expression failed, keeping previous value.", "node", n.Path, "reason", reason, "error", err)
			continue
		}
		n.value = v
	}
}

func evalNumber(expr hcl.Expression, evalCtx *hcl.EvalContext) (float64, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return 0, diags
	}
	if val.IsNull() || !val.IsKnown() {
		return 0, fmt.Errorf("expression produced no value")
	}
	num, err := convert.Convert(val, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("expression result is not a number: %w", err)
	}
	f, _ := num.AsBigFloat().Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expression result %v is not finite", f)
	}
	return f, nil
}
