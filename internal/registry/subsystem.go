package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/datatree"
	"github.com/specialistvlad/simplechan/internal/nodeid"
	"github.com/specialistvlad/simplechan/internal/propagation"
)

// Subsystem returns the handle of the named subsystem, loading and binding it
// on first use. Names are matched case-insensitively. A subsystem that fails
// to load is not left registered, so a later call retries from scratch.
func (r *Registry) Subsystem(ctx context.Context, name string, args config.LoadArgs) (int, error) {
	h, err := r.subsystem(ctx, name, args)
	if err != nil {
		return r.fail(ctx, kindSubsys, name, err)
	}
	return h, nil
}

func (r *Registry) findSubsystem(name string) (int, bool) {
	name = nodeid.TruncateSubsystem(name)
	return r.subsystems.Find(func(_ int, rec *subsystemRec) bool {
		return strings.EqualFold(rec.name, name)
	})
}

func (r *Registry) subsystem(ctx context.Context, name string, args config.LoadArgs) (int, error) {
	name = nodeid.TruncateSubsystem(name)
	if h, ok := r.findSubsystem(name); ok {
		return h, nil
	}

	h, err := r.subsystems.Allocate()
	if err != nil {
		return InvalidHandle, fmt.Errorf("%w: subsystem %q: %w", ErrAlloc, name, err)
	}
	rec, _ := r.subsystems.Access(h)
	rec.name = name
	rec.scalarHead = noLink
	rec.bigHead = noLink

	if err := r.instantiate(ctx, h, rec, args); err != nil {
		// The finalizer undoes whatever instantiate got through.
		_ = r.subsystems.Release(h)
		r.updateGauges()
		return InvalidHandle, err
	}

	r.metrics.loaded()
	r.updateGauges()
	ctxlog.FromContext(ctx).Info("Subsystem loaded.", "subsystem", name, "handle", h, "source", rec.desc.DefaultSource, "file", rec.desc.Source)
	return h, nil
}

func (r *Registry) instantiate(ctx context.Context, h int, rec *subsystemRec, args config.LoadArgs) error {
	lh, desc, err := r.loader.Open(ctx, rec.name, args)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrLoad, rec.name, err)
	}
	rec.loaderHandle = lh
	rec.desc = desc

	id, err := r.engine.Open(desc.DefaultSource, func(id propagation.BindingID, reason int) {
		r.dispatch(h, id, reason)
	}, propagation.ModeRegular)
	if err != nil {
		return fmt.Errorf("%w: subsystem %q to %q: %w", ErrBind, rec.name, desc.DefaultSource, err)
	}
	rec.binding = id
	rec.bound = true

	if desc.PhysInfoInline {
		r.engine.RegisterPhysInfoDB(desc.PhysInfo)
	} else {
		r.engine.RegisterPhysInfoDB(nil)
		if err := r.engine.SetPhysInfo(id, desc.PhysInfo); err != nil {
			return fmt.Errorf("%w: subsystem %q physical info: %w", ErrBind, rec.name, err)
		}
	}

	src := propagation.BindingSource{Binder: r.engine, ID: id}
	tree, err := datatree.Build(ctx, src, desc.Groups, src)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrLoad, rec.name, err)
	}
	rec.tree = tree
	rec.regs = &datatree.Registers{}

	if err := r.engine.Start(id); err != nil {
		return fmt.Errorf("%w: subsystem %q: %w", ErrBind, rec.name, err)
	}
	return nil
}

// finalizeSubsystem tears down a subsystem in reverse order of construction.
// It runs both for explicit closes and for failed loads.
func (r *Registry) finalizeSubsystem(h int, rec *subsystemRec) {
	if rec.tree != nil {
		rec.tree.Destroy()
	}
	if rec.bound {
		if err := r.engine.Close(rec.binding); err != nil {
			r.logger.Warn("Failed to close subsystem binding.", "subsystem", rec.name, "handle", h, "error", err)
		}
	}
	if rec.desc != nil {
		if err := r.loader.Close(rec.loaderHandle, rec.desc); err != nil {
			r.logger.Warn("Failed to close subsystem description.", "subsystem", rec.name, "handle", h, "error", err)
		}
	}
}

// CloseSubsystem releases a subsystem together with every scalar and big
// channel registered on it. Their handles become invalid and may be reused.
func (r *Registry) CloseSubsystem(ctx context.Context, name string) error {
	h, ok := r.findSubsystem(name)
	if !ok {
		return fmt.Errorf("%w: subsystem %q", ErrNotFound, name)
	}
	return r.closeSubsystem(ctx, h)
}

func (r *Registry) closeSubsystem(ctx context.Context, h int) error {
	rec, ok := r.subsystems.Access(h)
	if !ok {
		return fmt.Errorf("%w: subsystem %d", ErrInvalidHandle, h)
	}
	name := rec.name

	var scalars, bigs []int
	r.scalars.Each(func(c int, sc *scalarRec) {
		if sc.subsystem == h {
			scalars = append(scalars, c)
		}
	})
	r.bigs.Each(func(c int, bc *bigRec) {
		if bc.subsystem == h {
			bigs = append(bigs, c)
		}
	})

	var errs []error
	for _, c := range scalars {
		errs = append(errs, r.scalars.Release(c))
	}
	for _, c := range bigs {
		errs = append(errs, r.bigs.Release(c))
	}
	errs = append(errs, r.subsystems.Release(h))
	r.updateGauges()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing subsystem %q: %w", name, err)
	}
	ctxlog.FromContext(ctx).Info("Subsystem closed.", "subsystem", name, "scalars", len(scalars), "big_channels", len(bigs))
	return nil
}
