package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/specialistvlad/simplechan/internal/app"
)

// fileConfig mirrors the keys accepted in a -config TOML file.
type fileConfig struct {
	Descriptions    []string           `toml:"descriptions"`
	Watch           []string           `toml:"watch"`
	WatchBig        []app.BigWatchSpec `toml:"watch_big"`
	Set             []app.SetSpec      `toml:"set"`
	Tick            string             `toml:"tick"`
	Duration        string             `toml:"duration"`
	LogFormat       string             `toml:"log_format"`
	LogLevel        string             `toml:"log_level"`
	HealthcheckPort int                `toml:"healthcheck_port"`
}

// applyConfigFile overlays the keys defined in the TOML file at path onto cfg.
func applyConfigFile(path string, cfg *app.Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("descriptions") {
		cfg.DescriptionPaths = raw.Descriptions
	}
	if meta.IsDefined("watch") {
		cfg.Watch = nil
		for _, ch := range raw.Watch {
			cfg.Watch = append(cfg.Watch, app.WatchSpec{Channel: strings.TrimSpace(ch)})
		}
	}
	if meta.IsDefined("watch_big") {
		cfg.WatchBig = raw.WatchBig
	}
	if meta.IsDefined("set") {
		cfg.Set = raw.Set
	}

	if meta.IsDefined("tick") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Tick))
		if err != nil {
			return fmt.Errorf("parse tick: %w", err)
		}
		cfg.TickInterval = d
	}
	if meta.IsDefined("duration") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Duration))
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		cfg.Duration = d
	}

	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.TrimSpace(raw.LogFormat)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("healthcheck_port") {
		cfg.HealthcheckPort = raw.HealthcheckPort
	}
	return nil
}
