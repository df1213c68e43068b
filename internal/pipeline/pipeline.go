package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/internal/highlight"
	"github.com/keagan/momentcut/internal/logging"
	"github.com/keagan/momentcut/internal/moments"
	"github.com/keagan/momentcut/internal/predictor"
	"github.com/keagan/momentcut/pkg/util"
	"github.com/rs/zerolog"
)

// Pipeline prepares clips for a video and runs queries over them
type Pipeline struct {
	logger      zerolog.Logger
	segmenter   *clips.Segmenter
	clips       *clips.Store
	moments     *moments.Store
	extractor   *moments.Extractor
	predictor   predictor.Predictor
	transcriber highlight.Transcriber
	finder      *highlight.Finder
}

// Components are the collaborators of a Pipeline. Transcriber and Finder
// are optional; without them every video gets the fixed-length fallback.
type Components struct {
	Segmenter   *clips.Segmenter
	Clips       *clips.Store
	Moments     *moments.Store
	Extractor   *moments.Extractor
	Predictor   predictor.Predictor
	Transcriber highlight.Transcriber
	Finder      *highlight.Finder
}

// New creates a pipeline. The predictor is wrapped for exclusive access.
func New(logger zerolog.Logger, c Components) *Pipeline {
	return &Pipeline{
		logger:      logging.WithComponent(logger, "pipeline"),
		segmenter:   c.Segmenter,
		clips:       c.Clips,
		moments:     c.Moments,
		extractor:   c.Extractor,
		predictor:   predictor.Exclusive(c.Predictor),
		transcriber: c.Transcriber,
		finder:      c.Finder,
	}
}

// Prepare returns the clips of video, creating them on first use
func (p *Pipeline) Prepare(ctx context.Context, video clips.Video) ([]clips.Segment, error) {
	return p.PrepareWindows(ctx, video, nil)
}

// PrepareWindows is Prepare with caller-supplied windows in place of
// transcript highlights. Windows only apply when the clips are first created.
func (p *Pipeline) PrepareWindows(ctx context.Context, video clips.Video, windows []clips.Window) ([]clips.Segment, error) {
	return p.clips.GetOrCreate(ctx, video, func(ctx context.Context) ([]clips.Segment, error) {
		if len(windows) == 0 {
			windows = p.highlightWindows(ctx, video)
		}
		return p.segmenter.Segment(ctx, video, windows)
	})
}

// highlightWindows returns transcript-derived windows, or nil for the fallback
func (p *Pipeline) highlightWindows(ctx context.Context, video clips.Video) []clips.Window {
	if p.transcriber == nil || p.finder == nil {
		return nil
	}

	t, err := p.transcriber.Transcribe(ctx, video.Path)
	if err != nil {
		p.logger.Warn().Err(err).Str("video", video.ID).Msg("transcription failed, using fixed-length clips")
		return nil
	}

	windows := p.finder.Find(t)
	if len(windows) == 0 {
		p.logger.Info().Str("video", video.ID).Msg("no highlight windows found, using fixed-length clips")
	}
	return windows
}

// Run evaluates query against every clip of video in clip order. Cached
// results are reused; each clip is otherwise encoded, scored and cut.
func (p *Pipeline) Run(ctx context.Context, video clips.Video, query string, opts QueryOptions) (*Result, error) {
	started := time.Now()
	result := &Result{
		RunID:   uuid.NewString(),
		VideoID: video.ID,
		Query:   query,
		Moments: []moments.Moment{},
	}
	log := p.logger.With().
		Str("run_id", result.RunID).
		Str("video", video.ID).
		Str("query", query).
		Logger()

	segs, err := p.Prepare(ctx, video)
	if err != nil {
		return nil, err
	}
	result.Clips = len(segs)

	log.Info().Int("clips", len(segs)).Bool("strict", opts.Strict).Msg("query started")

	// ordinals continue after those already on disk, so a clip recomputed
	// after an earlier failure never reuses a taken ordinal
	history := &moments.History{}
	history.Reserve(p.moments.LastOrdinal(video.ID, query, segs))
	for _, clip := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !util.FileExists(clip.Path) {
			err := fmt.Errorf("%w: %s", ErrClipMissing, clip.FileName())
			if opts.Strict {
				return nil, err
			}
			log.Error().Err(err).Int("clip", clip.Index).Msg("skipping clip")
			result.Skipped = append(result.Skipped, clip.ID())
			continue
		}

		found, err := p.moments.GetOrCompute(ctx, video.ID, query, clip, p.evaluate(log, query, clip, history))
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, moments.ErrExtractionFailed):
			continue
		default:
			if opts.Strict {
				return nil, fmt.Errorf("clip %s: %w", clip.ID(), err)
			}
			log.Error().Err(err).Int("clip", clip.Index).Msg("clip evaluation failed")
			result.Skipped = append(result.Skipped, clip.ID())
			continue
		}

		history.Add(found...)
		result.Moments = append(result.Moments, found...)
	}

	result.Duration = time.Since(started)
	log.Info().
		Int("moments", len(result.Moments)).
		Int("skipped", len(result.Skipped)).
		Dur("elapsed", result.Duration).
		Msg("query complete")

	return result, nil
}

// evaluate runs encode, predict and extract for one clip inside a
// predictor scope that is released before the next clip
func (p *Pipeline) evaluate(log zerolog.Logger, query string, clip clips.Segment, history *moments.History) moments.ComputeFunc {
	return func(ctx context.Context, outDir string) ([]moments.Moment, error) {
		scope := predictor.Enter(p.predictor)
		defer func() {
			if err := scope.Close(); err != nil {
				log.Warn().Err(err).Int("clip", clip.Index).Msg("failed to release clip features")
			}
		}()

		features, err := scope.Encode(ctx, clip.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to encode clip: %w", err)
		}

		pred, err := scope.Predict(ctx, query, features)
		if errors.Is(err, predictor.ErrPredictionMalformed) {
			log.Warn().Err(err).Int("clip", clip.Index).Msg("treating malformed prediction as no moment")
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to predict: %w", err)
		}

		m, err := p.extractor.Extract(ctx, pred, clip, history, outDir)
		if err != nil || m == nil {
			return nil, err
		}
		return []moments.Moment{*m}, nil
	}
}

// Close releases the predictor if it holds resources
func (p *Pipeline) Close() error {
	if c, ok := p.predictor.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
