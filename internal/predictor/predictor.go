// Package predictor is the boundary to the moment-retrieval model: a clip is
// encoded into features once, then scored against a text query.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrPredictionMalformed reports model output without a usable ranked window
var ErrPredictionMalformed = errors.New("malformed prediction")

// Features are the encoded, model-specific representation of one clip.
// Release frees whatever memory (host or device) backs them.
type Features interface {
	Release() error
}

// Predictor encodes clips and predicts query-relevant windows
type Predictor interface {
	Encode(ctx context.Context, clipPath string) (Features, error)
	Predict(ctx context.Context, query string, features Features) (*Prediction, error)
}

// DeviceFlusher is implemented by predictors holding accelerator memory that
// should be returned between clips
type DeviceFlusher interface {
	FlushDevice() error
}

// Prediction is the raw model output. Each relevant window is
// [start, end, confidence] in seconds relative to the clip, best first.
type Prediction struct {
	RelevantWindows [][]float64 `json:"pred_relevant_windows"`
}

// Window is one decoded relevant window
type Window struct {
	Start      float64
	End        float64
	Confidence float64
}

// Top returns the best-ranked window. ok is false when there are no windows.
func (p *Prediction) Top() (w Window, ok bool, err error) {
	if p == nil {
		return Window{}, false, fmt.Errorf("%w: no prediction", ErrPredictionMalformed)
	}
	if len(p.RelevantWindows) == 0 {
		return Window{}, false, nil
	}

	raw := p.RelevantWindows[0]
	if len(raw) != 3 {
		return Window{}, false, fmt.Errorf("%w: top window has %d values, want 3", ErrPredictionMalformed, len(raw))
	}
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Window{}, false, fmt.Errorf("%w: non-finite value in top window", ErrPredictionMalformed)
		}
	}

	w = Window{Start: raw[0], End: raw[1], Confidence: raw[2]}
	if w.End <= w.Start {
		return Window{}, false, fmt.Errorf("%w: empty top window [%v, %v)", ErrPredictionMalformed, w.Start, w.End)
	}
	if w.Confidence < 0 || w.Confidence > 1 {
		return Window{}, false, fmt.Errorf("%w: confidence %v outside [0, 1]", ErrPredictionMalformed, w.Confidence)
	}
	return w, true, nil
}
