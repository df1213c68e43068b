package clips

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Video is a downloaded source video
type Video struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Window is a candidate [Start, End) range in seconds, typically suggested by
// transcript analysis
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one clip of a video, the unit of model inference. Start and End
// are absolute seconds on the video timeline.
type Segment struct {
	VideoID string  `json:"video_id"`
	Index   int     `json:"index"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Path    string  `json:"path"`
}

// Duration returns the segment length in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// FileName returns the encoded clip file name
func (s Segment) FileName() string {
	return FileName(s.VideoID, s.Index, s.Start, s.End)
}

// ID identifies the clip within its video; it is the file name without extension
func (s Segment) ID() string {
	return strings.TrimSuffix(s.FileName(), clipExt)
}

// Contains reports whether [start, end] lies inside the segment bounds
func (s Segment) Contains(start, end float64) bool {
	return start >= s.Start && end <= s.End
}

const clipExt = ".mp4"

var clipNamePattern = regexp.MustCompile(`^(.+)_clip_(\d+)_(\d+(?:\.\d+)?)s_to_(\d+(?:\.\d+)?)s\.mp4$`)

// FileName encodes {video_id}_clip_{index:03d}_{start:.1f}s_to_{end:.1f}s.mp4
func FileName(videoID string, index int, start, end float64) string {
	return fmt.Sprintf("%s_clip_%03d_%.1fs_to_%.1fs%s", videoID, index, start, end, clipExt)
}

// ParseFileName decodes a clip file name back into a Segment without Path
func ParseFileName(name string) (Segment, error) {
	m := clipNamePattern.FindStringSubmatch(name)
	if m == nil {
		return Segment{}, fmt.Errorf("not a clip file name: %q", name)
	}

	index, err := strconv.Atoi(m[2])
	if err != nil {
		return Segment{}, fmt.Errorf("bad clip index in %q: %w", name, err)
	}
	start, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Segment{}, fmt.Errorf("bad start in %q: %w", name, err)
	}
	end, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Segment{}, fmt.Errorf("bad end in %q: %w", name, err)
	}
	if index < 1 || end <= start {
		return Segment{}, fmt.Errorf("inconsistent clip bounds in %q", name)
	}

	return Segment{VideoID: m[1], Index: index, Start: start, End: end}, nil
}
