package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/datatree"
	"github.com/specialistvlad/simplechan/internal/nodeid"
)

// ScalarCallback receives a scalar channel's value after every tick of its
// subsystem.
type ScalarCallback interface {
	OnValue(h int, v float64)
}

// ScalarFunc adapts a function to ScalarCallback.
type ScalarFunc func(h int, v float64)

func (f ScalarFunc) OnValue(h int, v float64) {
	if f != nil {
		f(h, v)
	}
}

// resolve splits name, makes sure its subsystem is loaded and looks up the
// node it addresses.
func (r *Registry) resolve(ctx context.Context, name string, args config.LoadArgs) (int, *datatree.Node, error) {
	cn, err := nodeid.SplitChannelName(name)
	if err != nil {
		return InvalidHandle, nil, fmt.Errorf("%w: %q: %w", ErrInvalidName, name, err)
	}
	sub, err := r.subsystem(ctx, cn.Subsystem, args)
	if err != nil {
		return InvalidHandle, nil, err
	}
	rec, _ := r.subsystems.Access(sub)
	node, err := rec.tree.Find(cn.Node)
	if err != nil {
		return InvalidHandle, nil, fmt.Errorf("%w: %q: %w", ErrNotFound, name, err)
	}
	if node.IsGroup() {
		return InvalidHandle, nil, fmt.Errorf("%w: %q is a group", ErrWrongNodeKind, name)
	}
	return sub, node, nil
}

// RegisterScalar returns a handle for the scalar channel name. Registering a
// name again returns the existing handle and leaves its callback unchanged. cb
// may be nil.
func (r *Registry) RegisterScalar(ctx context.Context, name string, args config.LoadArgs, cb ScalarCallback) (int, error) {
	if name == "" {
		return r.fail(ctx, kindScalar, name, fmt.Errorf("%w: %w", ErrInvalidName, nodeid.ErrEmptyName))
	}
	if h, ok := r.scalars.Find(func(_ int, rec *scalarRec) bool { return strings.EqualFold(rec.name, name) }); ok {
		r.metrics.registered(kindScalar)
		return h, nil
	}

	sub, node, err := r.resolve(ctx, name, args)
	if err != nil {
		return r.fail(ctx, kindScalar, name, err)
	}

	h, err := r.scalars.Allocate()
	if err != nil {
		return r.fail(ctx, kindScalar, name, fmt.Errorf("%w: %q: %w", ErrAlloc, name, err))
	}
	rec, _ := r.scalars.Access(h)
	rec.name = name
	rec.subsystem = sub
	rec.node = node
	rec.cb = cb

	subRec, _ := r.subsystems.Access(sub)
	rec.next = subRec.scalarHead
	subRec.scalarHead = h

	r.metrics.registered(kindScalar)
	r.updateGauges()
	ctxlog.FromContext(ctx).Debug("Scalar channel registered.", "name", name, "handle", h, "subsystem", subRec.name)
	return h, nil
}

// SetScalar writes v to the channel's node. Node-level rejections are
// returned as the node tree reports them.
func (r *Registry) SetScalar(ctx context.Context, h int, v float64) error {
	rec, ok := r.scalars.Access(h)
	if !ok {
		return fmt.Errorf("%w: scalar %d", ErrInvalidHandle, h)
	}
	subRec, _ := r.subsystems.Access(rec.subsystem)
	return datatree.SetValue(ctx, rec.node, v, datatree.SetOptions{}, subRec.regs)
}

// GetScalar returns the channel's current value.
func (r *Registry) GetScalar(h int) (float64, error) {
	rec, ok := r.scalars.Access(h)
	if !ok {
		return 0, fmt.Errorf("%w: scalar %d", ErrInvalidHandle, h)
	}
	return rec.node.Value(), nil
}

// ScalarName returns the name a scalar channel was registered with.
func (r *Registry) ScalarName(h int) (string, bool) {
	rec, ok := r.scalars.Access(h)
	if !ok {
		return "", false
	}
	return rec.name, true
}
