package clips

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/keagan/momentcut/pkg/util"
	"github.com/rs/zerolog"
)

// Trimmer copies [start, end) seconds of input into output
type Trimmer interface {
	Trim(ctx context.Context, input string, start, end float64, output string) error
}

// Recorder receives freshly created clip lists, e.g. a sidecar index
type Recorder interface {
	PutClips(videoID string, segs []Segment) error
}

// SegmentFunc computes clip boundaries for a video that has no cached clips
type SegmentFunc func(ctx context.Context) ([]Segment, error)

// Store caches a video's clips as files under root/video_{id}/. File names
// are the only record of clip boundaries.
type Store struct {
	logger   zerolog.Logger
	root     string
	trimmer  Trimmer
	recorder Recorder
	mu       sync.Mutex
}

// NewStore creates a clip store rooted at root (typically {data_root}/yt_clipped)
func NewStore(logger zerolog.Logger, root string, trimmer Trimmer) *Store {
	return &Store{
		logger:  logger.With().Str("component", "clip-store").Logger(),
		root:    root,
		trimmer: trimmer,
	}
}

// WithRecorder attaches a recorder notified after clips are created
func (s *Store) WithRecorder(r Recorder) *Store {
	s.recorder = r
	return s
}

// Dir returns the clip directory of a video
func (s *Store) Dir(videoID string) string {
	return filepath.Join(s.root, "video_"+videoID)
}

// Cached parses the clip files already on disk, ordered by clip index.
// Unparsable or foreign file names are skipped.
func (s *Store) Cached(videoID string) ([]Segment, error) {
	dir := s.Dir(videoID)
	names, err := util.ListFiles(dir, clipExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips of %s: %w", videoID, err)
	}

	var segs []Segment
	for _, name := range names {
		seg, err := ParseFileName(name)
		if err != nil || seg.VideoID != videoID {
			s.logger.Debug().Str("file", name).Msg("skipping unrecognized clip file")
			continue
		}
		seg.Path = filepath.Join(dir, name)
		segs = append(segs, seg)
	}

	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].Index < segs[j].Index
	})
	return segs, nil
}

// GetOrCreate returns the cached clips of video, or computes them with
// segment and materializes every clip file. A clip whose extraction fails is
// still returned; its file is simply absent.
func (s *Store) GetOrCreate(ctx context.Context, video Video, segment SegmentFunc) ([]Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.Cached(video.ID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		s.logger.Info().
			Str("video", video.ID).
			Int("clips", len(cached)).
			Msg("using cached clips")
		return cached, nil
	}

	segs, err := segment(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to segment video %s: %w", video.ID, err)
	}

	dir := s.Dir(video.ID)
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create clip dir: %w", err)
	}

	failed := 0
	for i := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segs[i].VideoID = video.ID
		segs[i].Path = filepath.Join(dir, segs[i].FileName())

		if err := s.trimmer.Trim(ctx, video.Path, segs[i].Start, segs[i].End, segs[i].Path); err != nil {
			failed++
			s.logger.Error().
				Err(err).
				Str("video", video.ID).
				Int("clip", segs[i].Index).
				Msg("clip extraction failed")
		}
	}

	if s.recorder != nil {
		if err := s.recorder.PutClips(video.ID, segs); err != nil {
			s.logger.Warn().Err(err).Str("video", video.ID).Msg("failed to record clips in index")
		}
	}

	s.logger.Info().
		Str("video", video.ID).
		Int("clips", len(segs)).
		Int("failed", failed).
		Msg("clips created")

	return segs, nil
}
