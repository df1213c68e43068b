package pipeline

import (
	"errors"
	"time"

	"github.com/keagan/momentcut/internal/moments"
)

// ErrClipMissing reports a clip whose file is absent when a query needs it
var ErrClipMissing = errors.New("clip file missing")

// QueryOptions controls one query run
type QueryOptions struct {
	// Strict aborts the run on the first missing clip instead of skipping it
	Strict bool
}

// Result is the outcome of one query run. Moments are in clip order.
type Result struct {
	RunID    string           `json:"run_id"`
	VideoID  string           `json:"video_id"`
	Query    string           `json:"query"`
	Moments  []moments.Moment `json:"moments"`
	Clips    int              `json:"clips"`
	Skipped  []string         `json:"skipped,omitempty"`
	Duration time.Duration    `json:"duration"`
}
