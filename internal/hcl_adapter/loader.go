package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
	"github.com/specialistvlad/simplechan/internal/fsutil"
)

// Extension is the file extension of description files.
const Extension = ".hcl"

// ErrNotFound is returned when no description file exists for a subsystem.
var ErrNotFound = errors.New("description not found")

// Loader is the HCL-specific implementation of the config.Loader interface.
// A description for subsystem "linac" lives in "linac.hcl" in one of the
// search paths; the file name is matched case-insensitively.
type Loader struct {
	mu   sync.Mutex
	open map[*openHandle]struct{}
}

type openHandle struct {
	file string
}

// NewLoader creates a new HCL description loader.
func NewLoader() *Loader {
	return &Loader{open: make(map[*openHandle]struct{})}
}

// Open finds, parses and translates the description of subsystem.
func (l *Loader) Open(ctx context.Context, subsystem string, args config.LoadArgs) (config.Handle, *config.Description, error) {
	logger := ctxlog.FromContext(ctx).With("subsystem", subsystem)
	ctx = ctxlog.WithLogger(ctx, logger)

	if subsystem == "" {
		return nil, nil, fmt.Errorf("%w: empty subsystem name", ErrNotFound)
	}

	dirs := SearchPaths(args)
	file, err := fsutil.FindFileFold(dirs, subsystem+Extension)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %q (searched %s)", ErrNotFound, subsystem, strings.Join(dirs, ", "))
		}
		return nil, nil, err
	}
	logger.Debug("Found description file.", "file", file)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(file)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
	}

	desc, err := l.translateDescription(ctx, subsystem, file, &root)
	if err != nil {
		return nil, nil, err
	}

	h := &openHandle{file: file}
	l.mu.Lock()
	l.open[h] = struct{}{}
	l.mu.Unlock()

	logger.Debug("Description loaded.", "groups", len(desc.Groups), "physinfo", len(desc.PhysInfo), "default_source", desc.DefaultSource)
	return h, desc, nil
}

// Close releases a handle returned by Open.
func (l *Loader) Close(h config.Handle, _ *config.Description) error {
	oh, ok := h.(*openHandle)
	if !ok || oh == nil {
		return fmt.Errorf("not a description handle: %T", h)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.open[oh]; !ok {
		return fmt.Errorf("description %s already closed", oh.file)
	}
	delete(l.open, oh)
	return nil
}

// OpenCount returns the number of descriptions opened and not yet closed.
func (l *Loader) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// Subsystems lists the names of all descriptions found in the search paths,
// sorted and without duplicates.
func (l *Loader) Subsystems(args config.LoadArgs) ([]string, error) {
	seen := make(map[string]struct{})
	for _, dir := range SearchPaths(args) {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		files, err := fsutil.FindFilesByExtension(dir, Extension)
		if err != nil {
			return nil, fmt.Errorf("error walking %s: %w", dir, err)
		}
		for _, f := range files {
			seen[strings.TrimSuffix(filepath.Base(f), Extension)] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SearchPaths returns the directories searched for args: the explicit search
// paths if any, otherwise "descr" next to the program and in the working
// directory.
func SearchPaths(args config.LoadArgs) []string {
	if len(args.SearchPaths) > 0 {
		return args.SearchPaths
	}
	var dirs []string
	if args.ProgramName != "" {
		dirs = append(dirs, filepath.Join(filepath.Dir(args.ProgramName), "descr"))
	}
	return append(dirs, "descr")
}
