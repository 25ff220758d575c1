package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/registry"
)

// Run registers the configured channels, applies the configured writes and
// then ticks the engine until ctx ends or the configured duration elapses.
// The registry is closed before Run returns.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.List {
		return a.listSubsystems()
	}

	a.startHealthcheckServer()
	defer func() {
		closeErr := a.closeHealthcheckServer()
		if regErr := a.registry.Close(ctx); regErr != nil {
			closeErr = errors.Join(closeErr, regErr)
		}
		if err == nil {
			err = closeErr
		}
	}()

	if err := a.registerWatches(ctx); err != nil {
		return err
	}
	if err := a.applySets(ctx); err != nil {
		return err
	}

	if a.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Duration)
		defer cancel()
	}

	a.logger.Info("🚀 Monitoring channels.", "scalars", len(a.config.Watch), "big", len(a.config.WatchBig), "tick", a.config.TickInterval)
	err = a.engine.Run(ctx, a.config.TickInterval)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	a.logger.Info("🏁 Monitoring finished.")
	return err
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.outW, format, args...)
}

func (a *App) listSubsystems() error {
	names, err := a.loader.Subsystems(a.loadArgs())
	if err != nil {
		return fmt.Errorf("failed to list subsystems: %w", err)
	}
	for _, name := range names {
		a.printf("%s\n", name)
	}
	return nil
}

func (a *App) registerWatches(ctx context.Context) error {
	args := a.loadArgs()

	for _, w := range a.config.Watch {
		name := w.Channel
		_, err := a.registry.RegisterScalar(ctx, name, args, registry.ScalarFunc(func(_ int, v float64) {
			a.printf("%s=%g\n", name, v)
		}))
		if err != nil {
			return fmt.Errorf("failed to watch %q: %w", name, err)
		}
	}

	for _, w := range a.config.WatchBig {
		name := w.Channel
		_, err := a.registry.RegisterBig(ctx, name, w.MaxSize, args, registry.BigFunc(func(h int) {
			a.reportBig(name, h)
		}))
		if err != nil {
			return fmt.Errorf("failed to watch big channel %q: %w", name, err)
		}
	}
	return nil
}

func (a *App) reportBig(name string, h int) {
	age, flags, ok, err := a.registry.BigStats(h)
	if err != nil {
		a.logger.Warn("Failed to read big channel stats.", "channel", name, "error", err)
		return
	}
	if !ok {
		a.printf("%s: no data\n", name)
		return
	}
	buf, err := a.registry.Buffer(h)
	if err != nil {
		a.logger.Warn("Failed to read big channel buffer.", "channel", name, "error", err)
		return
	}
	a.printf("%s: size=%d age=%d flags=%d\n", name, len(buf), age, flags)
}

func (a *App) applySets(ctx context.Context) error {
	args := a.loadArgs()
	for _, s := range a.config.Set {
		h, err := a.registry.RegisterScalar(ctx, s.Channel, args, nil)
		if err != nil {
			return fmt.Errorf("failed to register %q for writing: %w", s.Channel, err)
		}
		if err := a.registry.SetScalar(ctx, h, s.Value); err != nil {
			return fmt.Errorf("failed to set %q to %g: %w", s.Channel, s.Value, err)
		}
		a.logger.Info("Channel set.", "channel", s.Channel, "value", s.Value)
	}
	return nil
}
