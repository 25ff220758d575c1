// This file translates the HCL schema structs into the format-agnostic
// description model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/specialistvlad/simplechan/internal/config"
	"github.com/specialistvlad/simplechan/internal/ctxlog"
)

func (l *Loader) translateDescription(ctx context.Context, subsystem, file string, root *fileRoot) (*config.Description, error) {
	d := &config.Description{
		Subsystem: subsystem,
		Source:    file,
	}
	if root.Subsystem != nil {
		d.DefaultSource = root.Subsystem.DefaultSource
	}
	if d.DefaultSource == "" {
		// A subsystem without an explicit source is served by a source of
		// its own name.
		d.DefaultSource = subsystem
	}

	if root.PhysInfo != nil {
		d.PhysInfoInline = root.PhysInfo.Inline
		seen := make(map[string]struct{}, len(root.PhysInfo.Channels))
		for _, pc := range root.PhysInfo.Channels {
			if _, dup := seen[pc.Name]; dup {
				return nil, fmt.Errorf("%s: duplicate physinfo channel %q", file, pc.Name)
			}
			seen[pc.Name] = struct{}{}
			d.PhysInfo = append(d.PhysInfo, config.PhysChannel{Name: pc.Name, Source: pc.Source, Number: pc.Number})
		}
	}

	for _, g := range root.Groups {
		def, err := l.translateGroup(ctx, file, g.Name, g)
		if err != nil {
			return nil, err
		}
		d.Groups = append(d.Groups, def)
	}
	return d, nil
}

func (l *Loader) translateGroup(ctx context.Context, file, path string, g *groupBlock) (*config.GroupDef, error) {
	def := &config.GroupDef{Name: g.Name}
	names := make(map[string]struct{}, len(g.Groups)+len(g.Channels))

	for _, sub := range g.Groups {
		if _, dup := names[sub.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate node %q in group %q", file, sub.Name, path)
		}
		names[sub.Name] = struct{}{}
		subDef, err := l.translateGroup(ctx, file, path+"."+sub.Name, sub)
		if err != nil {
			return nil, err
		}
		def.Groups = append(def.Groups, subDef)
	}

	for _, ch := range g.Channels {
		if _, dup := names[ch.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate node %q in group %q", file, ch.Name, path)
		}
		names[ch.Name] = struct{}{}
		chDef, err := l.translateChannel(ctx, file, path+"."+ch.Name, ch)
		if err != nil {
			return nil, err
		}
		def.Channels = append(def.Channels, chDef)
	}
	return def, nil
}

func (l *Loader) translateChannel(ctx context.Context, file, path string, c *channelBlock) (*config.ChannelDef, error) {
	logger := ctxlog.FromContext(ctx).With("channel", path)
	ctx = ctxlog.WithLogger(ctx, logger)

	def := &config.ChannelDef{Name: c.Name, Kind: config.KindDirect}
	if c.Kind != nil {
		def.Kind = config.Kind(*c.Kind)
	} else if c.Register != nil {
		def.Kind = config.KindRegister
	} else if isExprDefined(ctx, c.Expr, "expr") {
		def.Kind = config.KindCalc
	}
	if !def.Kind.Valid() {
		return nil, fmt.Errorf("%s: channel %q: unknown kind %q", file, path, def.Kind)
	}

	if c.Number != nil {
		def.Number = *c.Number
	}
	if c.PhysChan != nil {
		def.PhysChan = *c.PhysChan
	}
	if c.Initial != nil {
		def.Initial = *c.Initial
	}
	if c.ReadOnly != nil {
		def.ReadOnly = *c.ReadOnly
	}

	switch {
	case c.Min != nil && c.Max != nil:
		if *c.Min > *c.Max {
			return nil, fmt.Errorf("%s: channel %q: min %g is greater than max %g", file, path, *c.Min, *c.Max)
		}
		def.Min, def.Max, def.HasRange = *c.Min, *c.Max, true
	case c.Min != nil || c.Max != nil:
		return nil, fmt.Errorf("%s: channel %q: min and max must be set together", file, path)
	}

	switch def.Kind {
	case config.KindRegister:
		if c.Register == nil {
			return nil, fmt.Errorf("%s: channel %q: register channels need a 'register' index", file, path)
		}
		def.Register = *c.Register
	case config.KindCalc:
		if !isExprDefined(ctx, c.Expr, "expr") {
			return nil, fmt.Errorf("%s: channel %q: calc channels need an 'expr'", file, path)
		}
		def.Expr = c.Expr
		def.ReadOnly = true
	}

	logger.Debug("Translated channel definition.", "kind", def.Kind, "number", def.Number)
	return def, nil
}
