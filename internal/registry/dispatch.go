package registry

import (
	"context"

	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/propagation"
)

// dispatch handles a tick of subsystem h's binding: refresh the tree, then
// run the scalar chain, then the big chain.
func (r *Registry) dispatch(h int, id propagation.BindingID, reason int) {
	rec, ok := r.subsystems.Access(h)
	if !ok || !rec.bound || rec.binding != id {
		r.logger.Debug("Ignoring tick for a released subsystem.", "handle", h, "binding", id)
		return
	}
	name := rec.name

	ctx := ctxlog.WithLogger(context.Background(), r.logger)
	rec.tree.Process(ctx, reason, rec.regs)
	r.metrics.ticked(name)

	for c := rec.scalarHead; c != noLink; {
		sc, ok := r.scalars.Access(c)
		if !ok {
			break
		}
		next, cb, v := sc.next, sc.cb, sc.node.Value()
		if cb != nil {
			cb.OnValue(c, v)
			r.metrics.calledBack(kindScalar)
		}
		c = next
	}

	// Scalar callbacks may have closed the subsystem.
	rec, ok = r.subsystems.Access(h)
	if !ok || rec.binding != id {
		return
	}
	for c := rec.bigHead; c != noLink; {
		bc, ok := r.bigs.Access(c)
		if !ok {
			break
		}
		next, cb := bc.next, bc.cb
		if cb != nil {
			cb.OnUpdate(c)
			r.metrics.calledBack(kindBig)
		}
		c = next
	}
}

// bigTick handles a tick of big channel h's own binding, which the engine
// only delivers when fresh data arrived. It snapshots the payload into the
// channel's local buffer.
func (r *Registry) bigTick(h int, id propagation.BindingID, reason int) {
	rec, ok := r.bigs.Access(h)
	if !ok || !rec.bound || rec.binding != id {
		return
	}
	if err := r.Refresh(h); err != nil {
		r.logger.Warn("Failed to refresh big channel buffer.", "name", rec.name, "handle", h, "tick", reason, "error", err)
		return
	}
	r.logger.Debug("Big channel buffer refreshed.", "name", rec.name, "handle", h, "tick", reason, "bytes", rec.bufLen)
}
