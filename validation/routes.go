// Package validation checks routed lines for geometric consistency.
package validation

import (
	"fmt"

	"pathlink/core"
)

// ValidationError describes one problem with a route. Segment is the index
// of the offending segment, or -1 when the route as a whole is at fault.
type ValidationError struct {
	Segment int
	Message string
}

func (e ValidationError) Error() string {
	if e.Segment < 0 {
		return e.Message
	}
	return fmt.Sprintf("segment %d: %s", e.Segment, e.Message)
}

// RouteValidator checks that a route is a connected chain of segments from
// the requested start to the requested end.
type RouteValidator struct {
	errors []ValidationError
	// strictMode rejects the single diagonal segment of a direct fallback.
	strictMode bool
}

// NewRouteValidator creates a new validator with default settings.
func NewRouteValidator() *RouteValidator {
	return &RouteValidator{}
}

// SetStrictMode enables or disables strict validation.
func (v *RouteValidator) SetStrictMode(strict bool) {
	v.strictMode = strict
}

// Validate checks segs as a route from start to end.
func (v *RouteValidator) Validate(segs []core.Segment, start, end core.Point) []ValidationError {
	v.errors = nil
	if len(segs) == 0 {
		v.addError(-1, "route is empty")
		return v.errors
	}

	if segs[0].Start != start {
		v.addError(0, "starts at (%g,%g) instead of (%g,%g)", segs[0].Start.X, segs[0].Start.Y, start.X, start.Y)
	}
	last := segs[len(segs)-1]
	if last.End != end {
		v.addError(len(segs)-1, "ends at (%g,%g) instead of (%g,%g)", last.End.X, last.End.Y, end.X, end.Y)
	}

	direct := len(segs) == 1
	for i, s := range segs {
		dir := s.Direction()
		if dir == core.None && s.Start != s.End && (v.strictMode || !direct) {
			v.addError(i, "is not axis-aligned")
		}
		if s.Start == s.End && !direct {
			v.addError(i, "has zero length")
		}
		if i == 0 {
			continue
		}

		prev := segs[i-1]
		if s.Start != prev.End {
			v.addError(i, "does not start where segment %d ends", i-1)
			continue
		}
		switch prevDir := prev.Direction(); {
		case dir == core.None || prevDir == core.None:
		case dir == prevDir:
			v.addError(i, "continues segment %d in the same direction", i-1)
		case dir == prevDir.Opposite():
			v.addError(i, "doubles back on segment %d", i-1)
		}
	}
	return v.errors
}

func (v *RouteValidator) addError(segment int, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{Segment: segment, Message: fmt.Sprintf(format, args...)})
}
