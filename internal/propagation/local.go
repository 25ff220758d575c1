package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/specialistvlad/simplechan/internal/config"
)

// Local is an in-process propagation engine. It is safe for concurrent use.
type Local struct {
	mu       sync.Mutex
	logger   *slog.Logger
	sources  map[string]*source
	bindings map[BindingID]*binding
	bigs     map[BigHandle]*bigAttachment
	nextID   BindingID
	nextBig  BigHandle
	physDB   []config.PhysChannel
	ticks    int
}

var _ Engine = (*Local)(nil)

type source struct {
	ref         string
	values      map[int]float64
	bigs        map[int]*bigBuffer // sharable buffers by channel number
	buffers     map[*bigBuffer]struct{}
	bindings    []BindingID // open order
	unreachable error
}

type binding struct {
	id      BindingID
	ref     string
	mode    Mode
	handler TickHandler
	started bool
	phys    []config.PhysChannel
	bigs    []BigHandle
}

// LocalOption configures a Local engine.
type LocalOption func(*Local)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) { l.logger = logger }
}

// NewLocal creates an engine with no sources.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		logger:   slog.Default(),
		sources:  make(map[string]*source),
		bindings: make(map[BindingID]*binding),
		bigs:     make(map[BigHandle]*bigAttachment),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) sourceLocked(ref string) *source {
	s, ok := l.sources[ref]
	if !ok {
		s = &source{
			ref:     ref,
			values:  make(map[int]float64),
			bigs:    make(map[int]*bigBuffer),
			buffers: make(map[*bigBuffer]struct{}),
		}
		l.sources[ref] = s
	}
	return s
}

// SetUnreachable makes future Open calls for ref fail with an error wrapping
// ErrUnreachable. A nil reason makes the source reachable again.
func (l *Local) SetUnreachable(ref string, reason error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sourceLocked(ref).unreachable = reason
}

// Open creates a binding to source ref. The binding receives ticks once started.
func (l *Local) Open(ref string, h TickHandler, mode Mode) (BindingID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.sourceLocked(ref)
	if s.unreachable != nil {
		return -1, fmt.Errorf("%w: %q: %v", ErrUnreachable, ref, s.unreachable)
	}

	id := l.nextID
	l.nextID++
	l.bindings[id] = &binding{id: id, ref: ref, mode: mode, handler: h}
	s.bindings = append(s.bindings, id)

	l.logger.Debug("Binding opened.", "binding", id, "source", ref, "mode", mode)
	return id, nil
}

// Start enables tick delivery for a binding.
func (l *Local) Start(id BindingID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bindings[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBinding, id)
	}
	b.started = true
	return nil
}

// Close removes a binding together with its big-channel attachments.
func (l *Local) Close(id BindingID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bindings[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBinding, id)
	}
	s := l.sources[b.ref]
	for _, h := range b.bigs {
		if att := l.bigs[h]; att.private {
			delete(s.buffers, att.buf)
		}
		delete(l.bigs, h)
	}
	delete(l.bindings, id)

	s.bindings = slices.DeleteFunc(s.bindings, func(other BindingID) bool { return other == id })

	l.logger.Debug("Binding closed.", "binding", id, "source", b.ref)
	return nil
}

// RegisterPhysInfoDB installs the process-wide physical-info database.
func (l *Local) RegisterPhysInfoDB(table []config.PhysChannel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.physDB = slices.Clone(table)
}

// SetPhysInfo attaches a physical-info table to a binding.
func (l *Local) SetPhysInfo(id BindingID, table []config.PhysChannel) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bindings[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBinding, id)
	}
	b.phys = slices.Clone(table)
	return nil
}

// LookupPhys resolves a physical channel name for a binding.
func (l *Local) LookupPhys(id BindingID, name string) (config.PhysChannel, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.bindings[id]; ok {
		if pc, found := config.FindPhys(b.phys, name); found {
			return pc, true
		}
	}
	return config.FindPhys(l.physDB, name)
}

// Value returns channel n of the binding's source.
func (l *Local) Value(id BindingID, n int) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bindings[id]
	if !ok {
		return 0, false
	}
	v, ok := l.sources[b.ref].values[n]
	return v, ok
}

// Write sets channel n of the binding's source.
func (l *Local) Write(id BindingID, n int, v float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bindings[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBinding, id)
	}
	if b.mode != ModeRegular {
		return fmt.Errorf("%w: scalar write on %s binding", ErrWrongMode, b.mode)
	}
	l.sources[b.ref].values[n] = v
	return nil
}

// Put sets channel n of source ref directly, as an external producer would.
func (l *Local) Put(ref string, n int, v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sourceLocked(ref).values[n] = v
}

type delivery struct {
	id      BindingID
	handler TickHandler
}

// Tick delivers one tick to every started binding of source ref: regular
// bindings first, in open order, then big bindings with fresh data.
func (l *Local) Tick(ref string) {
	l.mu.Lock()
	l.ticks++
	reason := l.ticks
	pending := l.collectLocked(ref)
	l.mu.Unlock()

	for _, d := range pending {
		d.handler(d.id, reason)
	}
}

// TickAll ticks every known source, in reference order.
func (l *Local) TickAll() {
	l.mu.Lock()
	refs := make([]string, 0, len(l.sources))
	for ref := range l.sources {
		refs = append(refs, ref)
	}
	l.mu.Unlock()

	sort.Strings(refs)
	for _, ref := range refs {
		l.Tick(ref)
	}
}

func (l *Local) collectLocked(ref string) []delivery {
	s, ok := l.sources[ref]
	if !ok {
		return nil
	}

	var regular, big []delivery
	for _, id := range s.bindings {
		b := l.bindings[id]
		if !b.started || b.handler == nil {
			continue
		}
		if b.mode == ModeRegular {
			regular = append(regular, delivery{id: id, handler: b.handler})
			continue
		}
		for _, h := range b.bigs {
			att := l.bigs[h]
			if att.buf.pending && att.delivery == DeliverImmediate {
				big = append(big, delivery{id: id, handler: b.handler})
				break
			}
		}
	}

	for buf := range s.buffers {
		buf.advance()
	}
	return append(regular, big...)
}

// Run ticks every source once per interval until ctx is done.
func (l *Local) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Debug("Propagation engine running.", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Propagation engine stopped.")
			return ctx.Err()
		case <-ticker.C:
			l.TickAll()
		}
	}
}

// Bindings returns the number of open bindings.
func (l *Local) Bindings() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bindings)
}
