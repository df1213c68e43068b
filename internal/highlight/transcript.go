package highlight

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Transcript is a timed speech transcript of a video
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Segment is one transcribed utterance in seconds
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ParseTranscript decodes whisper-style JSON output. Segments with an empty
// or reversed time range are dropped; the rest are ordered by start.
func ParseTranscript(data []byte) (*Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}

	kept := t.Segments[:0]
	for _, s := range t.Segments {
		if s.Start >= 0 && s.End > s.Start {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start < kept[j].Start
	})
	t.Segments = kept

	return &t, nil
}
