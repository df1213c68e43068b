package api

import (
	"context"

	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/internal/download"
	"github.com/keagan/momentcut/internal/moments"
	"github.com/keagan/momentcut/internal/pipeline"
)

// Service is what the HTTP handlers need from the application
type Service interface {
	Videos() ([]clips.Video, error)
	Download(ctx context.Context, rawURL, quality string) (*clips.Video, error)
	Clips(ctx context.Context, videoID string) ([]clips.Segment, error)
	Query(ctx context.Context, videoID, query string, opts pipeline.QueryOptions) (*pipeline.Result, error)
	Moments(videoID, query string) ([]moments.Moment, error)
	Queries(videoID string) ([]string, error)
}

// RuntimeService serves requests from a wired runtime
type RuntimeService struct {
	rt *pipeline.Runtime
}

// NewRuntimeService wraps rt
func NewRuntimeService(rt *pipeline.Runtime) *RuntimeService {
	return &RuntimeService{rt: rt}
}

func (s *RuntimeService) Videos() ([]clips.Video, error) {
	return download.List(s.rt.Config.DownloadsDir())
}

func (s *RuntimeService) Download(ctx context.Context, rawURL, quality string) (*clips.Video, error) {
	d, err := s.rt.Downloader()
	if err != nil {
		return nil, err
	}
	if quality == "" {
		quality = s.rt.Config.Download.Quality
	}
	return d.Download(ctx, rawURL, quality)
}

func (s *RuntimeService) Clips(ctx context.Context, videoID string) ([]clips.Segment, error) {
	video, err := s.rt.Video(videoID)
	if err != nil {
		return nil, err
	}
	return s.rt.Pipeline.Prepare(ctx, *video)
}

func (s *RuntimeService) Query(ctx context.Context, videoID, query string, opts pipeline.QueryOptions) (*pipeline.Result, error) {
	video, err := s.rt.Video(videoID)
	if err != nil {
		return nil, err
	}
	return s.rt.Pipeline.Run(ctx, *video, query, opts)
}

func (s *RuntimeService) Moments(videoID, query string) ([]moments.Moment, error) {
	return s.rt.Index.Moments(videoID, moments.SanitizeQuery(query))
}

func (s *RuntimeService) Queries(videoID string) ([]string, error) {
	return s.rt.Index.Queries(videoID)
}
