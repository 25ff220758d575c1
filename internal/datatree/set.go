package datatree

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
)

var (
	ErrNotLeaf      = errors.New("node is not a leaf")
	ErrReadOnly     = errors.New("node is read-only")
	ErrOutOfRange   = errors.New("value out of range")
	ErrInvalidValue = errors.New("invalid value")
)

// SetOptions tunes SetValue.
type SetOptions struct {
	// NoRangeCheck skips the node's min/max check.
	NoRangeCheck bool
}

// SetValue writes v to a leaf. Register leaves store it in regs, direct leaves
// write it through the tree's source. A rejected write leaves the node's value
// unchanged.
func SetValue(ctx context.Context, n *Node, v float64, opts SetOptions, regs *Registers) error {
	if n == nil {
		return ErrNodeNotFound
	}
	if n.IsGroup() {
		return fmt.Errorf("%w: %s", ErrNotLeaf, n.Path)
	}
	if n.tree == nil || n.tree.destroyed {
		return fmt.Errorf("%s: %w", n.Path, ErrDestroyed)
	}
	if math.IsNaN(v) {
		return fmt.Errorf("%w: NaN for %s", ErrInvalidValue, n.Path)
	}
	if n.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, n.Path)
	}
	if n.HasRange && !opts.NoRangeCheck && (v < n.Min || v > n.Max) {
		return fmt.Errorf("%w: %g not in [%g, %g] for %s", ErrOutOfRange, v, n.Min, n.Max, n.Path)
	}

	switch n.Kind {
	case config.KindRegister:
		if regs == nil {
			return fmt.Errorf("%s: no register bank", n.Path)
		}
		if err := regs.Set(n.Register, v); err != nil {
			return err
		}
	case config.KindDirect:
		if n.tree.src == nil {
			return fmt.Errorf("%s: no data source", n.Path)
		}
		if err := n.tree.src.Write(n.Number, v); err != nil {
			return fmt.Errorf("%s: %w", n.Path, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrReadOnly, n.Path)
	}

	n.value = v
	ctxlog.FromContext(ctx).Debug("Node value set.", "node", n.Path, "value", v)
	return nil
}
