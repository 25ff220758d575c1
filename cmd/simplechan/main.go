package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/simplechan/internal/app"
	"github.com/specialistvlad/simplechan/internal/cli"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
)

// main is the entrypoint for the simplechan application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Args[0], os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			stop()
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, programName string, args []string) error {
	cfg, shouldExit, err := cli.Parse(programName, args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	ctx = ctxlog.WithLogger(ctx, slog.Default())
	return app.NewApp(ctx, outW, cfg).Run(ctx)
}
