package nodeid

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptyName   = errors.New("empty channel name")
	ErrNoSeparator = errors.New("channel name has no '.' separator")
)

// SplitChannelName splits name at its first '.'.
//
// An empty subsystem (".node") is accepted here; whether it resolves is up to
// the description loader.
func SplitChannelName(name string) (ChannelName, error) {
	if name == "" {
		return ChannelName{}, ErrEmptyName
	}
	dot := strings.IndexByte(name, '.')
	if dot < 0 {
		return ChannelName{}, fmt.Errorf("%w: %q", ErrNoSeparator, name)
	}

	return ChannelName{Subsystem: TruncateSubsystem(name[:dot]), Node: name[dot+1:]}, nil
}

// TruncateSubsystem cuts name to at most MaxSubsystemLen bytes without
// splitting a UTF-8 sequence.
func TruncateSubsystem(name string) string {
	if len(name) <= MaxSubsystemLen {
		return name
	}
	n := MaxSubsystemLen
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

// String joins the name back together.
func (c ChannelName) String() string {
	return c.Subsystem + "." + c.Node
}
