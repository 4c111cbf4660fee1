// Package model defines the core observation data types.
package model

// Priority indicates how load-bearing an observation is. It is assigned
// at extraction time and drives retention during reflection.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// Markers are the fixed on-disk symbols for each priority.
const (
	MarkerHigh   = "[!]"
	MarkerMedium = "[~]"
	MarkerLow    = "[-]"
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "medium"
	}
}

// Marker returns the on-disk symbol for the priority.
func (p Priority) Marker() string {
	switch p {
	case PriorityHigh:
		return MarkerHigh
	case PriorityLow:
		return MarkerLow
	default:
		return MarkerMedium
	}
}

// ParseMarker maps a marker symbol back to a priority. Unknown or absent
// markers default to medium.
func ParseMarker(s string) (Priority, bool) {
	switch s {
	case MarkerHigh:
		return PriorityHigh, true
	case MarkerMedium:
		return PriorityMedium, true
	case MarkerLow:
		return PriorityLow, true
	}
	return PriorityMedium, false
}

// Entry is one timestamped observation, optionally with nested children
// that elaborate on it. Children inherit the parent's date but carry
// their own time and priority.
type Entry struct {
	ID       string  `json:"id"`
	Time     string  `json:"time,omitempty"` // HH:MM, 24-hour
	Priority Priority `json:"priority"`
	Text     string  `json:"text"`
	Children []Entry `json:"children,omitempty"`

	// Raw marks a line that failed to parse and is preserved verbatim in
	// Text so partial corruption never loses content.
	Raw bool `json:"raw,omitempty"`
}

// DateGroup is an ordered run of root entries sharing one calendar date.
// A group with an empty Date holds unstructured leading content.
type DateGroup struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Entries []Entry `json:"entries"`
}

// Store is the full ordered corpus of date groups for one project.
// Group order is insertion order and is never silently rearranged.
type Store struct {
	Groups []DateGroup `json:"groups"`
}
