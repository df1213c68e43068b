package moments

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Moment is an accepted query-relevant sub-clip. Start and End are absolute
// seconds on the video timeline and always lie inside the owning clip.
type Moment struct {
	VideoID    string  `json:"video_id"`
	ClipID     string  `json:"clip_id"`
	Ordinal    int     `json:"ordinal"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Path       string  `json:"path"`
}

// Duration returns the moment length in seconds
func (m Moment) Duration() float64 {
	return m.End - m.Start
}

// FileName returns the encoded moment file name
func (m Moment) FileName() string {
	return FileName(m.VideoID, m.Ordinal, m.Start, m.End, m.Confidence)
}

const momentExt = ".mp4"

var momentNamePattern = regexp.MustCompile(`^video_(.+)_moment_(\d+)_(\d+(?:\.\d+)?)s_to_(\d+(?:\.\d+)?)s_conf_(\d+(?:\.\d+)?)\.mp4$`)

// FileName encodes video_{id}_moment_{ordinal:03d}_{start:.1f}s_to_{end:.1f}s_conf_{confidence:.2f}.mp4
func FileName(videoID string, ordinal int, start, end, confidence float64) string {
	return fmt.Sprintf("video_%s_moment_%03d_%.1fs_to_%.1fs_conf_%.2f%s",
		videoID, ordinal, start, end, confidence, momentExt)
}

// ParseFileName decodes a moment file name. ClipID and Path are left empty.
func ParseFileName(name string) (Moment, error) {
	m := momentNamePattern.FindStringSubmatch(name)
	if m == nil {
		return Moment{}, fmt.Errorf("not a moment file name: %q", name)
	}

	ordinal, err := strconv.Atoi(m[2])
	if err != nil {
		return Moment{}, fmt.Errorf("bad ordinal in %q: %w", name, err)
	}

	var vals [3]float64
	for i, s := range m[3:6] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Moment{}, fmt.Errorf("bad value %q in %q: %w", s, name, err)
		}
		vals[i] = v
	}
	if ordinal < 1 || vals[1] <= vals[0] || vals[2] > 1 {
		return Moment{}, fmt.Errorf("inconsistent moment values in %q", name)
	}

	return Moment{
		VideoID:    m[1],
		Ordinal:    ordinal,
		Start:      vals[0],
		End:        vals[1],
		Confidence: vals[2],
	}, nil
}

// MaxQueryKey bounds the byte length of a sanitized query so it stays a
// valid directory name on common filesystems
const MaxQueryKey = 200

// SanitizeQuery turns a query into a single directory name: lowercase,
// whitespace and path separators replaced with underscores. Keys longer than
// MaxQueryKey are cut and suffixed with a hash of the full key.
func SanitizeQuery(query string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '\\' {
			return '_'
		}
		return unicode.ToLower(r)
	}, strings.TrimSpace(query))

	switch s {
	case "", ".", "..":
		return "_"
	}
	if len(s) <= MaxQueryKey {
		return s
	}

	h := fnv.New32a()
	h.Write([]byte(s))
	suffix := fmt.Sprintf("_%08x", h.Sum32())

	cut := MaxQueryKey - len(suffix)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}
