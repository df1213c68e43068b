package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/internal/config"
	"github.com/keagan/momentcut/internal/download"
	"github.com/keagan/momentcut/internal/ffmpeg"
	"github.com/keagan/momentcut/internal/highlight"
	"github.com/keagan/momentcut/internal/index"
	"github.com/keagan/momentcut/internal/moments"
	"github.com/keagan/momentcut/internal/predictor"
	"github.com/rs/zerolog"
)

// Runtime is the fully wired application built from configuration
type Runtime struct {
	Config   *config.Config
	FFmpeg   *ffmpeg.Executor
	Index    *index.Index
	Clips    *clips.Store
	Moments  *moments.Store
	Pipeline *Pipeline

	logger zerolog.Logger
}

// Open wires every component from cfg. The predictor is built on first use.
func Open(logger zerolog.Logger, cfg *config.Config) (*Runtime, error) {
	exec, err := ffmpeg.New(logger, ffmpeg.Options{
		BinaryPath: cfg.FFmpeg.BinaryPath,
		ProbePath:  cfg.FFmpeg.ProbePath,
		Threads:    cfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	idx, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, err
	}

	cutter := ffmpeg.NewCutter(exec, cfg.Clips.Reencode)
	clipStore := clips.NewStore(logger, cfg.ClipsDir(), cutter).WithRecorder(idx)
	momentStore := moments.NewStore(logger, cfg.MomentsDir()).WithIndex(idx)

	var policy moments.DuplicatePolicy = moments.OverlapPolicy{Ratio: cfg.Moments.OverlapRatio}
	if cfg.Moments.DedupPolicy == config.DedupThreshold {
		policy = moments.ThresholdPolicy{Seconds: cfg.Moments.TimeThreshold}
	}

	c := Components{
		Segmenter: clips.NewSegmenter(logger, exec, cfg.Clips.LengthSeconds),
		Clips:     clipStore,
		Moments:   momentStore,
		Extractor: moments.NewExtractor(logger, cutter, policy, cfg.Moments.ConfidenceThreshold),
		Predictor: predictor.Lazy(func() (predictor.Predictor, error) {
			return newPredictor(logger, cfg, exec)
		}),
	}

	if len(cfg.Highlights.TranscribeCommand) > 0 {
		tr, err := highlight.NewCommandTranscriber(logger, exec, cfg.Highlights.TranscribeCommand, "")
		if err != nil {
			logger.Warn().Err(err).Msg("transcriber unavailable, clips use fixed-length segmentation")
		} else {
			c.Transcriber = tr
			c.Finder = highlight.NewFinder(cfg.Highlights.MinWindow, cfg.Highlights.MaxWindow)
		}
	}

	return &Runtime{
		Config:   cfg,
		FFmpeg:   exec,
		Index:    idx,
		Clips:    clipStore,
		Moments:  momentStore,
		Pipeline: New(logger, c),
		logger:   logger,
	}, nil
}

func newPredictor(logger zerolog.Logger, cfg *config.Config, exec *ffmpeg.Executor) (predictor.Predictor, error) {
	switch cfg.Predictor.Backend {
	case config.BackendONNX:
		o := cfg.Predictor.ONNX
		p, err := predictor.NewONNXPredictor(logger, exec, predictor.ONNXOptions{
			LibraryPath:   o.LibraryPath,
			ImageEncoder:  o.ImageEncoder,
			MomentHead:    o.MomentHead,
			FrameInterval: o.FrameInterval,
			EmbedDim:      o.EmbedDim,
			NumQueries:    o.NumQueries,
			MaxFrames:     o.MaxFrames,
			QueryLen:      o.QueryLen,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		p, err := predictor.NewCommandPredictor(logger, cfg.Predictor.Command, os.TempDir())
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Downloader builds the yt-dlp downloader
func (r *Runtime) Downloader() (*download.YouTube, error) {
	return download.NewYouTube(r.logger, r.Config.Download.Binary, r.Config.DownloadsDir(), r.Config.Download.Format)
}

// Video resolves a downloaded video by id
func (r *Runtime) Video(id string) (*clips.Video, error) {
	return download.Find(r.Config.DownloadsDir(), id)
}

// Close releases the predictor and the index
func (r *Runtime) Close() error {
	return errors.Join(r.Pipeline.Close(), r.Index.Close())
}
