package moments

import (
	"math"

	"github.com/keagan/momentcut/internal/clips"
)

// DuplicatePolicy decides whether a candidate repeats a moment already
// accepted in the same run. Only moments inside the candidate's own clip are
// compared, so coinciding timestamps from distant clips never collide.
type DuplicatePolicy interface {
	IsDuplicate(candidate Moment, clip clips.Segment, accepted []Moment) bool
}

// OverlapPolicy treats a candidate as duplicate when its overlap with an
// accepted moment exceeds Ratio of the candidate's own duration
type OverlapPolicy struct {
	Ratio float64
}

func (p OverlapPolicy) IsDuplicate(candidate Moment, clip clips.Segment, accepted []Moment) bool {
	limit := p.Ratio * candidate.Duration()
	for _, m := range accepted {
		if !inClip(clip, m) {
			continue
		}
		if overlap(candidate, m) > limit {
			return true
		}
	}
	return false
}

// ThresholdPolicy treats a candidate as duplicate when both its start and end
// are within Seconds of an accepted moment
type ThresholdPolicy struct {
	Seconds float64
}

func (p ThresholdPolicy) IsDuplicate(candidate Moment, clip clips.Segment, accepted []Moment) bool {
	for _, m := range accepted {
		if !inClip(clip, m) {
			continue
		}
		if math.Abs(candidate.Start-m.Start) <= p.Seconds && math.Abs(candidate.End-m.End) <= p.Seconds {
			return true
		}
	}
	return false
}

// File names keep one decimal, so cached moments may sit up to half a step
// outside the unrounded clip bounds
const nameTolerance = 0.05 + 1e-9

func inClip(clip clips.Segment, m Moment) bool {
	return clip.Contains(m.Start+nameTolerance, m.End-nameTolerance)
}

func overlap(a, b Moment) float64 {
	return math.Max(0, math.Min(a.End, b.End)-math.Max(a.Start, b.Start))
}

// History is the ordered set of moments accepted during one run, plus the
// highest ordinal already taken by moments stored for the query
type History struct {
	accepted []Moment
	last     int
}

// Add records accepted moments
func (h *History) Add(ms ...Moment) {
	h.accepted = append(h.accepted, ms...)
	for _, m := range ms {
		h.Reserve(m.Ordinal)
	}
}

// Reserve marks every ordinal up to n as taken
func (h *History) Reserve(n int) {
	if n > h.last {
		h.last = n
	}
}

// Moments returns the accepted moments in acceptance order
func (h *History) Moments() []Moment {
	return h.accepted
}

// NextOrdinal is the ordinal the next accepted moment receives. It never
// repeats an ordinal that was added or reserved.
func (h *History) NextOrdinal() int {
	return max(len(h.accepted), h.last) + 1
}
