package protocol

// MaxFragment is the fragment bound meaning "no limit". It is the largest
// integer a JavaScript deck runtime can represent exactly.
const MaxFragment = 1<<53 - 1

// SlideIndices identifies a horizontal slide, vertical slide and fragment.
type SlideIndices struct {
	H int `json:"h"`
	V int `json:"v"`
	F int `json:"f"`
}

// Compare orders positions lexicographically on (h, v, f). It returns -1 when
// s is behind o, 0 when equal and 1 when s is ahead.
func (s SlideIndices) Compare(o SlideIndices) int {
	switch {
	case s.H != o.H:
		return sign(s.H - o.H)
	case s.V != o.V:
		return sign(s.V - o.V)
	default:
		return sign(s.F - o.F)
	}
}

// Before reports whether s is strictly behind o.
func (s SlideIndices) Before(o SlideIndices) bool {
	return s.Compare(o) < 0
}

// WithUnlimitedFragment returns s with its fragment bound lifted.
func (s SlideIndices) WithUnlimitedFragment() SlideIndices {
	s.F = MaxFragment
	return s
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// IndexSpec is a slide position as it appeared on the wire. HasF reports
// whether the fragment index was supplied by the sender.
type IndexSpec struct {
	SlideIndices
	HasF bool
}

// NavigationCapabilities carries the deck's reported navigation flags. A nil
// flag means unknown, not false.
type NavigationCapabilities struct {
	CanNavigateBack    *bool `json:"canNavigateBack,omitempty"`
	CanNavigateForward *bool `json:"canNavigateForward,omitempty"`
	CanNavigateUp      *bool `json:"canNavigateUp,omitempty"`
	CanNavigateDown    *bool `json:"canNavigateDown,omitempty"`
}

// IsZero reports whether no flag is known.
func (c NavigationCapabilities) IsZero() bool {
	return c.CanNavigateBack == nil && c.CanNavigateForward == nil &&
		c.CanNavigateUp == nil && c.CanNavigateDown == nil
}
