package app

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTickInterval is used when a Config leaves TickInterval unset.
const DefaultTickInterval = time.Second

// WatchSpec names a scalar channel whose value is printed on every tick.
type WatchSpec struct {
	Channel string `toml:"channel"`
}

// BigWatchSpec names a big channel whose updates are reported, together with
// the largest payload it may carry.
type BigWatchSpec struct {
	Channel string `toml:"channel"`
	MaxSize int    `toml:"max_size"`
}

// SetSpec is a value written to a scalar channel once at startup.
type SetSpec struct {
	Channel string  `toml:"channel"`
	Value   float64 `toml:"value"`
}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// DescriptionPaths are searched for subsystem descriptions. When empty,
	// "descr" next to ProgramName and in the working directory are used.
	DescriptionPaths []string
	ProgramName      string

	Watch    []WatchSpec
	WatchBig []BigWatchSpec
	Set      []SetSpec

	// List makes Run print the available subsystems and return.
	List bool

	TickInterval time.Duration
	// Duration stops Run after the given time. 0 runs until the context ends.
	Duration time.Duration

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.TickInterval < 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %s", cfg.TickInterval)
	}
	if cfg.Duration < 0 {
		return nil, fmt.Errorf("duration cannot be negative, got %s", cfg.Duration)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if !cfg.List && len(cfg.Watch) == 0 && len(cfg.WatchBig) == 0 && len(cfg.Set) == 0 {
		return nil, errors.New("nothing to do: no channels to watch or set")
	}

	for _, w := range cfg.Watch {
		if w.Channel == "" {
			return nil, errors.New("watch entry has an empty channel name")
		}
	}
	for _, w := range cfg.WatchBig {
		if w.Channel == "" {
			return nil, errors.New("big watch entry has an empty channel name")
		}
		if w.MaxSize <= 0 {
			return nil, fmt.Errorf("big watch %q: max size must be positive, got %d", w.Channel, w.MaxSize)
		}
	}
	for _, s := range cfg.Set {
		if s.Channel == "" {
			return nil, errors.New("set entry has an empty channel name")
		}
	}

	return &cfg, nil
}
