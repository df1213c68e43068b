package moments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/internal/predictor"
	"github.com/keagan/momentcut/pkg/util"
	"github.com/rs/zerolog"
)

// DefaultConfidenceThreshold is the minimum accepted confidence
const DefaultConfidenceThreshold = 0.75

// ErrExtractionFailed reports that an accepted candidate could not be cut from its clip
var ErrExtractionFailed = errors.New("moment extraction failed")

// Extractor turns a clip's prediction into at most one moment
type Extractor struct {
	logger    zerolog.Logger
	trimmer   clips.Trimmer
	policy    DuplicatePolicy
	threshold float64
}

// NewExtractor creates an extractor; a nil policy means OverlapPolicy{Ratio: 0.5}
func NewExtractor(logger zerolog.Logger, trimmer clips.Trimmer, policy DuplicatePolicy, threshold float64) *Extractor {
	if policy == nil {
		policy = OverlapPolicy{Ratio: 0.5}
	}
	return &Extractor{
		logger:    logger.With().Str("component", "moment-extractor").Logger(),
		trimmer:   trimmer,
		policy:    policy,
		threshold: threshold,
	}
}

// Extract takes the top-ranked window of pred, translates it to the video
// timeline and, if it passes the confidence gate and is not a duplicate of a
// moment in history, cuts it from the clip into outDir.
//
// A nil moment with nil error means no moment: no windows, malformed output,
// low confidence or a duplicate. Extraction errors wrap ErrExtractionFailed.
// The caller adds accepted moments to history.
func (e *Extractor) Extract(ctx context.Context, pred *predictor.Prediction, clip clips.Segment, history *History, outDir string) (*Moment, error) {
	log := e.logger.With().Str("video", clip.VideoID).Int("clip", clip.Index).Logger()

	top, ok, err := pred.Top()
	if err != nil {
		log.Warn().Err(err).Msg("discarding malformed prediction")
		return nil, nil
	}
	if !ok {
		log.Debug().Msg("no relevant windows")
		return nil, nil
	}

	relStart := math.Max(0, top.Start)
	relEnd := math.Min(clip.Duration(), top.End)
	if relEnd <= relStart {
		log.Debug().
			Float64("start", top.Start).
			Float64("end", top.End).
			Msg("top window outside clip")
		return nil, nil
	}

	candidate := Moment{
		VideoID:    clip.VideoID,
		ClipID:     clip.ID(),
		Ordinal:    history.NextOrdinal(),
		Start:      clip.Start + relStart,
		End:        clip.Start + relEnd,
		Confidence: top.Confidence,
	}

	if candidate.Confidence < e.threshold {
		log.Debug().
			Float64("confidence", candidate.Confidence).
			Float64("threshold", e.threshold).
			Msg("below confidence threshold")
		return nil, nil
	}

	if e.policy.IsDuplicate(candidate, clip, history.Moments()) {
		log.Info().
			Float64("start", candidate.Start).
			Float64("end", candidate.End).
			Msg("duplicate moment suppressed")
		return nil, nil
	}

	if err := util.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	candidate.Path = filepath.Join(outDir, candidate.FileName())

	if err := e.trimmer.Trim(ctx, clip.Path, relStart, relEnd, candidate.Path); err != nil {
		log.Error().
			Err(err).
			Float64("start", candidate.Start).
			Float64("end", candidate.End).
			Msg("moment extraction failed")
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	log.Info().
		Int("ordinal", candidate.Ordinal).
		Float64("start", candidate.Start).
		Float64("end", candidate.End).
		Float64("confidence", candidate.Confidence).
		Msg("moment accepted")

	return &candidate, nil
}
