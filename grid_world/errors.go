package grid_world

import "fmt"

// MalformedLayoutError is returned when layout text cannot be converted into a grid.
// It is fatal at load time; a malformed layout is never silently replaced by a default.
type MalformedLayoutError struct {
	// Line is the 1-based layout row at fault, or zero if the fault is not tied to a row.
	Line   int
	Reason string
}

func (e *MalformedLayoutError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed layout: line %d: %s", e.Line, e.Reason)
	}
	return "malformed layout: " + e.Reason
}

// InvalidStateError indicates a position or state key that fails its bounds or shape invariant.
// This is a logic defect, not an environmental condition, and callers should treat it as fatal.
type InvalidStateError struct {
	Position Position
	Reason   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state at %v: %s", e.Position, e.Reason)
}
