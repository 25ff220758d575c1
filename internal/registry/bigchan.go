package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/nodeid"
	"github.com/specialistvlad/simplechan/internal/propagation"
)

// MaxBigParams is the number of parameter slots opened for every big channel.
const MaxBigParams = 100

// BigCallback is notified after every tick of a big channel's subsystem. It
// receives no payload; read it with ReadBig or Buffer.
type BigCallback interface {
	OnUpdate(h int)
}

// BigFunc adapts a function to BigCallback.
type BigFunc func(h int)

func (f BigFunc) OnUpdate(h int) {
	if f != nil {
		f(h)
	}
}

// RegisterBig returns a handle for the big channel name, opening a dedicated
// binding of up to maxSize bytes. A direct node with a physical address binds
// to that address; any other node binds to the local source with its own
// channel number.
func (r *Registry) RegisterBig(ctx context.Context, name string, maxSize int, args config.LoadArgs, cb BigCallback) (int, error) {
	if name == "" {
		return r.fail(ctx, kindBig, name, fmt.Errorf("%w: %w", ErrInvalidName, nodeid.ErrEmptyName))
	}
	if h, ok := r.bigs.Find(func(_ int, rec *bigRec) bool { return strings.EqualFold(rec.name, name) }); ok {
		r.metrics.registered(kindBig)
		return h, nil
	}

	if maxSize < 0 {
		return r.fail(ctx, kindBig, name, fmt.Errorf("%w: %q: negative max size %d", ErrBind, name, maxSize))
	}

	sub, node, err := r.resolve(ctx, name, args)
	if err != nil {
		return r.fail(ctx, kindBig, name, err)
	}

	ref, n := "", node.Number
	if node.Kind == config.KindDirect && node.Phys != nil {
		ref, n = node.Phys.Source, node.Phys.Number
	}

	h, err := r.bigs.Allocate()
	if err != nil {
		return r.fail(ctx, kindBig, name, fmt.Errorf("%w: %q: %w", ErrAlloc, name, err))
	}
	rec, _ := r.bigs.Access(h)
	rec.name = name
	rec.subsystem = sub
	rec.node = node
	rec.cb = cb
	rec.next = noLink
	rec.maxSize = maxSize
	rec.buf = make([]byte, maxSize)

	if err := r.bindBig(h, rec, ref, n); err != nil {
		_ = r.bigs.Release(h)
		r.updateGauges()
		return r.fail(ctx, kindBig, name, fmt.Errorf("%w: %q to %q channel %d: %w", ErrBind, name, ref, n, err))
	}
	subRec, _ := r.subsystems.Access(sub)
	rec.next = subRec.bigHead
	subRec.bigHead = h

	r.metrics.registered(kindBig)
	r.updateGauges()
	ctxlog.FromContext(ctx).Debug("Big channel registered.", "name", name, "handle", h, "source", ref, "channel", n, "max_size", maxSize)
	return h, nil
}

func (r *Registry) bindBig(h int, rec *bigRec, ref string, n int) error {
	id, err := r.engine.Open(ref, func(id propagation.BindingID, reason int) {
		r.bigTick(h, id, reason)
	}, propagation.ModeBig)
	if err != nil {
		return err
	}
	rec.binding = id
	rec.bound = true

	big, err := r.engine.OpenBig(id, n, MaxBigParams, rec.maxSize, propagation.CacheSharable, propagation.DeliverImmediate)
	if err != nil {
		return err
	}
	rec.big = big
	return r.engine.Start(id)
}

// finalizeBig closes the channel's binding, which drops its big-channel
// attachment with it.
func (r *Registry) finalizeBig(h int, rec *bigRec) {
	if !rec.bound {
		return
	}
	if err := r.engine.Close(rec.binding); err != nil {
		r.logger.Warn("Failed to close big channel binding.", "name", rec.name, "handle", h, "error", err)
	}
}

func (r *Registry) bigChannel(h int) (*bigRec, error) {
	rec, ok := r.bigs.Access(h)
	if !ok {
		return nil, fmt.Errorf("%w: big channel %d", ErrInvalidHandle, h)
	}
	return rec, nil
}

// ReadBig copies size bytes at ofs of the channel's payload into buf.
func (r *Registry) ReadBig(h, ofs, size int, buf []byte) (int, error) {
	rec, err := r.bigChannel(h)
	if err != nil {
		return -1, err
	}
	return r.engine.ReadBig(rec.big, ofs, size, buf)
}

// WriteBig stores size bytes of buf at ofs of the channel's payload.
func (r *Registry) WriteBig(h, ofs, size int, buf []byte, units int) (int, error) {
	rec, err := r.bigChannel(h)
	if err != nil {
		return -1, err
	}
	return r.engine.WriteBig(rec.big, ofs, size, buf, units)
}

// BigStats returns the payload's age in ticks and its result flags. ok is
// false when no statistics are available yet.
func (r *Registry) BigStats(h int) (age, flags int, ok bool, err error) {
	rec, err := r.bigChannel(h)
	if err != nil {
		return 0, 0, false, err
	}
	return r.engine.BigStats(rec.big)
}

// GetBigParam returns parameter idx of the channel.
func (r *Registry) GetBigParam(h, idx int) (int32, error) {
	rec, err := r.bigChannel(h)
	if err != nil {
		return 0, err
	}
	vals := make([]int32, 1)
	if _, err := r.engine.GetBigParams(rec.big, idx, vals); err != nil {
		return 0, err
	}
	return vals[0], nil
}

// SetBigParam sets parameter idx of the channel.
func (r *Registry) SetBigParam(h, idx int, v int32) error {
	rec, err := r.bigChannel(h)
	if err != nil {
		return err
	}
	_, err = r.engine.SetBigParams(rec.big, idx, []int32{v})
	return err
}

// Refresh reads the whole payload into the channel's local buffer.
func (r *Registry) Refresh(h int) error {
	rec, err := r.bigChannel(h)
	if err != nil {
		return err
	}
	n, err := r.engine.ReadBig(rec.big, 0, rec.maxSize, rec.buf)
	if err != nil {
		return err
	}
	rec.bufLen = n
	return nil
}

// Buffer returns a copy of the channel's local buffer as of the last refresh.
func (r *Registry) Buffer(h int) ([]byte, error) {
	rec, err := r.bigChannel(h)
	if err != nil {
		return nil, err
	}
	out := make([]byte, rec.bufLen)
	copy(out, rec.buf[:rec.bufLen])
	return out, nil
}

// BigName returns the name a big channel was registered with.
func (r *Registry) BigName(h int) (string, bool) {
	rec, ok := r.bigs.Access(h)
	if !ok {
		return "", false
	}
	return rec.name, true
}
