package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/hcl_adapter"
	"github.com/specialistvlad/simplechan/internal/propagation"
	"github.com/specialistvlad/simplechan/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	outMu    sync.Mutex
	logger   *slog.Logger
	config   *Config
	loader   *hcl_adapter.Loader
	engine   *propagation.Local
	registry *registry.Registry

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, engine and registry.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	loader := hcl_adapter.NewLoader()
	engine := propagation.NewLocal(propagation.WithLogger(logger))
	reg := registry.New(loader, engine, registry.WithLogger(logger), registry.WithMetrics(registry.NewMetrics()))

	ctxlog.FromContext(ctx).Debug("Application assembled.", "description_paths", cfg.DescriptionPaths)
	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		loader:   loader,
		engine:   engine,
		registry: reg,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Engine returns the application's propagation engine. This is primarily for
// testing.
func (a *App) Engine() *propagation.Local {
	return a.engine
}

func (a *App) loadArgs() config.LoadArgs {
	return config.LoadArgs{
		ProgramName: a.config.ProgramName,
		SearchPaths: a.config.DescriptionPaths,
	}
}
