package highlight

import (
	"github.com/keagan/momentcut/internal/clips"
)

// Default window bounds in seconds
const (
	DefaultMinWindow = 15
	DefaultMaxWindow = 149
)

// Finder groups consecutive transcript segments into highlight windows
// between MinWindow and MaxWindow seconds long. Windows are ordered and never
// overlap.
type Finder struct {
	MinWindow float64
	MaxWindow float64
}

// NewFinder creates a finder, substituting defaults for non-positive bounds
func NewFinder(minWindow, maxWindow float64) *Finder {
	if minWindow <= 0 {
		minWindow = DefaultMinWindow
	}
	if maxWindow <= 0 || maxWindow < minWindow {
		maxWindow = DefaultMaxWindow
	}
	return &Finder{MinWindow: minWindow, MaxWindow: maxWindow}
}

// Find returns the highlight windows of t, or nil if there are none
func (f *Finder) Find(t *Transcript) []clips.Window {
	if t == nil || len(t.Segments) == 0 {
		return nil
	}

	var out []clips.Window
	cur := clips.Window{Start: t.Segments[0].Start, End: t.Segments[0].End}

	for _, s := range t.Segments[1:] {
		start := s.Start
		if start < cur.End {
			start = cur.End
		}
		if s.End <= start {
			continue
		}
		if s.End-cur.Start > f.MaxWindow {
			out = f.flush(out, cur)
			cur = clips.Window{Start: start, End: s.End}
			continue
		}
		cur.End = s.End
	}

	return f.flush(out, cur)
}

// flush appends w, splitting it when too long and folding it into the
// previous window (or dropping it) when too short
func (f *Finder) flush(out []clips.Window, w clips.Window) []clips.Window {
	d := w.End - w.Start

	switch {
	case d > f.MaxWindow:
		splits := int(d / f.MaxWindow)
		chunk := d / float64(splits+1)
		for j := 0; j <= splits; j++ {
			start := w.Start + float64(j)*chunk
			end := start + chunk
			if j == splits || end > w.End {
				end = w.End
			}
			out = append(out, clips.Window{Start: start, End: end})
		}
	case d < f.MinWindow:
		if n := len(out); n > 0 && w.End-out[n-1].Start <= f.MaxWindow {
			out[n-1].End = w.End
		}
	default:
		out = append(out, w)
	}
	return out
}
