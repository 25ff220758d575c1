package nodeid

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// segmentRegex matches a single path segment.
var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Parse parses a dotted node path.
func Parse(raw string) (*Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("node path cannot be empty")
	}

	p := &Path{}
	for _, segment := range strings.Split(raw, ".") {
		if segment == "" {
			return nil, fmt.Errorf("node path %q contains empty segment", raw)
		}
		if !segmentRegex.MatchString(segment) || segment == "-" {
			return nil, fmt.Errorf("invalid path segment: %q", segment)
		}
		p.Segments = append(p.Segments, segment)
	}
	return p, nil
}

// String serializes the path back into its dotted form.
func (p *Path) String() string {
	if p == nil {
		return ""
	}
	return strings.Join(p.Segments, ".")
}

// Equal checks for equality between two paths.
func (p *Path) Equal(other *Path) bool {
	if p == nil || other == nil {
		return p == other
	}
	return slices.Equal(p.Segments, other.Segments)
}
