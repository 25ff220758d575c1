package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/specialistvlad/simplechan/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
// programName is passed through to the loader to locate default description
// directories.
func Parse(programName string, args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("simplechan", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
simplechan - Monitor and write named data channels.

Usage:
  simplechan [options] [CHANNEL...]

Arguments:
  CHANNEL
    A scalar channel to watch, as "subsystem.node.path".

Options:
`)
		flagSet.PrintDefaults()
	}

	var watchFlags, bigFlags, setFlags stringList
	configFlag := flagSet.String("config", "", "Path to a TOML configuration file. Flags override its values.")
	descrFlag := flagSet.String("descr", "", "Comma-separated directories holding subsystem descriptions.")
	flagSet.Var(&watchFlags, "watch", "Scalar channel to watch. Repeatable.")
	flagSet.Var(&bigFlags, "watch-big", "Big channel to watch, as NAME:MAXSIZE. Repeatable.")
	flagSet.Var(&setFlags, "set", "Write a scalar channel once at startup, as NAME=VALUE. Repeatable.")
	listFlag := flagSet.Bool("list", false, "List the available subsystems and exit.")
	tickFlag := flagSet.Duration("tick", app.DefaultTickInterval, "Interval between engine ticks.")
	durationFlag := flagSet.Duration("duration", 0, "Stop after this long. 0 runs until interrupted.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := app.Config{
		ProgramName:  programName,
		TickInterval: app.DefaultTickInterval,
		LogFormat:    "text",
		LogLevel:     "info",
	}
	if *configFlag != "" {
		if err := applyConfigFile(*configFlag, &cfg); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		slog.Debug("Config file applied.", "path", *configFlag)
	}

	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["descr"] {
		cfg.DescriptionPaths = splitList(*descrFlag)
	}
	if set["watch"] {
		cfg.Watch = nil
		for _, ch := range watchFlags {
			cfg.Watch = append(cfg.Watch, app.WatchSpec{Channel: ch})
		}
	}
	for _, ch := range flagSet.Args() {
		cfg.Watch = append(cfg.Watch, app.WatchSpec{Channel: ch})
	}
	if set["watch-big"] {
		specs, err := parseBigWatches(bigFlags)
		if err != nil {
			return nil, false, err
		}
		cfg.WatchBig = specs
	}
	if set["set"] {
		specs, err := parseSets(setFlags)
		if err != nil {
			return nil, false, err
		}
		cfg.Set = specs
	}
	if set["list"] {
		cfg.List = *listFlag
	}
	if set["tick"] {
		cfg.TickInterval = *tickFlag
	}
	if set["duration"] {
		cfg.Duration = *durationFlag
	}
	if set["healthcheck-port"] {
		cfg.HealthcheckPort = *healthPortFlag
	}
	if set["log-format"] {
		cfg.LogFormat = *logFormatFlag
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevelFlag
	}

	if !cfg.List && len(cfg.Watch) == 0 && len(cfg.WatchBig) == 0 && len(cfg.Set) == 0 {
		slog.Debug("No channels given, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBigWatches(values []string) ([]app.BigWatchSpec, error) {
	specs := make([]app.BigWatchSpec, 0, len(values))
	for _, v := range values {
		name, sizeStr, ok := strings.Cut(v, ":")
		if !ok {
			return nil, usageError("invalid -watch-big %q: want NAME:MAXSIZE", v)
		}
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, usageError("invalid -watch-big %q: %v", v, err)
		}
		specs = append(specs, app.BigWatchSpec{Channel: name, MaxSize: size})
	}
	return specs, nil
}

func parseSets(values []string) ([]app.SetSpec, error) {
	specs := make([]app.SetSpec, 0, len(values))
	for _, v := range values {
		name, valStr, ok := strings.Cut(v, "=")
		if !ok {
			return nil, usageError("invalid -set %q: want NAME=VALUE", v)
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return nil, usageError("invalid -set %q: %v", v, err)
		}
		specs = append(specs, app.SetSpec{Channel: name, Value: val})
	}
	return specs, nil
}
