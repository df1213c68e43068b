package clips

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/keagan/momentcut/pkg/util"
	"github.com/rs/zerolog"
)

// DefaultClipLength is the fixed clip length of the fallback segmentation
const DefaultClipLength = 149.0

// ErrInvalidWindow reports a highlight window with negative start or start >= end
var ErrInvalidWindow = errors.New("invalid highlight window")

// Prober reports a video's duration in seconds
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Segmenter decides the clip boundaries of a video
type Segmenter struct {
	logger     zerolog.Logger
	prober     Prober
	clipLength float64
}

// NewSegmenter creates a segmenter; clipLength <= 0 selects DefaultClipLength
func NewSegmenter(logger zerolog.Logger, prober Prober, clipLength float64) *Segmenter {
	if clipLength <= 0 {
		clipLength = DefaultClipLength
	}
	return &Segmenter{
		logger:     logger.With().Str("component", "segmenter").Logger(),
		prober:     prober,
		clipLength: clipLength,
	}
}

// Segment turns highlight windows into clips in input order, or splits the
// whole video into fixed-length clips when there are no windows
func (s *Segmenter) Segment(ctx context.Context, video Video, windows []Window) ([]Segment, error) {
	if len(windows) > 0 {
		segs, err := FromWindows(video.ID, windows)
		if err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("video", video.ID).
			Int("clips", len(segs)).
			Msg("segmented from highlight windows")
		return segs, nil
	}

	duration, err := s.prober.ProbeDuration(ctx, video.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe duration: %w", err)
	}

	segs, err := Fixed(video.ID, duration, s.clipLength)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("video", video.ID).
		Float64("duration", duration).
		Float64("clip_length", s.clipLength).
		Int("clips", len(segs)).
		Msg("no highlight windows, using fixed segmentation")

	return segs, nil
}

// ParseWindow parses a "START-END" range such as "02:29-04:58" or "149-298"
func ParseWindow(s string) (Window, error) {
	start, end, err := util.ParseRange(s)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	if start >= end {
		return Window{}, fmt.Errorf("%w: %q ends before it starts", ErrInvalidWindow, s)
	}
	return Window{Start: start, End: end}, nil
}

// FromWindows numbers windows sequentially from 1. Ordering and overlap
// between windows are not checked.
func FromWindows(videoID string, windows []Window) ([]Segment, error) {
	segs := make([]Segment, 0, len(windows))
	for i, w := range windows {
		if !(w.Start >= 0) || !(w.Start < w.End) {
			return nil, fmt.Errorf("%w: #%d [%v, %v)", ErrInvalidWindow, i+1, w.Start, w.End)
		}
		segs = append(segs, Segment{
			VideoID: videoID,
			Index:   i + 1,
			Start:   w.Start,
			End:     w.End,
		})
	}
	return segs, nil
}

// Fixed splits [0, duration) into non-overlapping clips of clipLength seconds;
// the last clip is truncated at duration
func Fixed(videoID string, duration, clipLength float64) ([]Segment, error) {
	if !(duration > 0) {
		return nil, fmt.Errorf("video %s has no duration", videoID)
	}
	if !(clipLength > 0) {
		return nil, fmt.Errorf("clip length must be positive, got %v", clipLength)
	}

	n := int(math.Ceil(duration / clipLength))
	segs := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * clipLength
		segs = append(segs, Segment{
			VideoID: videoID,
			Index:   i + 1,
			Start:   start,
			End:     math.Min(start+clipLength, duration),
		})
	}
	return segs, nil
}
