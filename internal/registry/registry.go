package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/datatree"
	"github.com/specialistvlad/simplechan/internal/propagation"
	"github.com/specialistvlad/simplechan/internal/slot"
)

// noLink terminates a callback chain.
const noLink = -1

type subsystemRec struct {
	name string

	loaderHandle config.Handle
	desc         *config.Description

	binding propagation.BindingID
	bound   bool

	tree *datatree.Tree
	regs *datatree.Registers

	scalarHead int
	bigHead    int
}

type scalarRec struct {
	name      string
	subsystem int
	node      *datatree.Node
	cb        ScalarCallback
	next      int
}

type bigRec struct {
	name      string
	subsystem int
	node      *datatree.Node
	cb        BigCallback
	next      int

	binding propagation.BindingID
	bound   bool
	big     propagation.BigHandle
	maxSize int
	buf     []byte
	bufLen  int
}

// Registry owns the subsystem, scalar channel and big channel tables.
type Registry struct {
	logger  *slog.Logger
	loader  config.Loader
	engine  propagation.Engine
	metrics *Metrics

	subsystems *slot.Table[subsystemRec]
	scalars    *slot.Table[scalarRec]
	bigs       *slot.Table[bigRec]

	lastErr error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used on paths that carry no context, such as tick
// dispatch and slot finalizers.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics records the registry's activity in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates an empty registry that loads descriptions with loader and binds
// subsystems through engine.
func New(loader config.Loader, engine propagation.Engine, opts ...Option) *Registry {
	r := &Registry{
		logger: slog.Default(),
		loader: loader,
		engine: engine,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics()
	}
	r.subsystems = slot.New(slot.WithFinalizer(r.finalizeSubsystem))
	r.scalars = slot.New[scalarRec]()
	r.bigs = slot.New(slot.WithFinalizer(r.finalizeBig))
	return r
}

// Metrics returns the registry's collectors.
func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

// LastError returns the error of the most recent failed registration, or nil
// if none has failed yet.
func (r *Registry) LastError() error {
	return r.lastErr
}

// fail records err as the last error, logs it and returns the invalid handle.
func (r *Registry) fail(ctx context.Context, kind, name string, err error) (int, error) {
	r.lastErr = err
	r.metrics.failed(kind)
	ctxlog.FromContext(ctx).Warn("Channel registration failed.", "kind", kind, "name", name, "error", err)
	return InvalidHandle, err
}

func (r *Registry) updateGauges() {
	r.metrics.live(kindSubsys, r.subsystems.Count())
	r.metrics.live(kindScalar, r.scalars.Count())
	r.metrics.live(kindBig, r.bigs.Count())
}

// Close releases every channel and subsystem. Errors from individual
// subsystems are joined.
func (r *Registry) Close(ctx context.Context) error {
	var handles []int
	r.subsystems.Each(func(h int, _ *subsystemRec) { handles = append(handles, h) })

	var errs []error
	for _, h := range handles {
		if err := r.closeSubsystem(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing registry: %w", err)
	}
	return nil
}
