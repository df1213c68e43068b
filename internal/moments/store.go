package moments

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/pkg/util"
	"github.com/rs/zerolog"
)

// Computation is the recorded outcome of running a query against one clip.
// An empty Moments list means the clip was evaluated and yielded nothing.
type Computation struct {
	Moments    []Moment  `json:"moments"`
	ComputedAt time.Time `json:"computed_at"`
}

// Index remembers computations so clips without a moment are not re-evaluated
type Index interface {
	Computation(videoID, queryKey, clipID string) (*Computation, bool, error)
	PutComputation(videoID, queryKey, clipID string, c Computation) error
}

// ComputeFunc evaluates one clip, writing any moment file into outDir
type ComputeFunc func(ctx context.Context, outDir string) ([]Moment, error)

// Store caches moments as files under root/video_{id}/{query}/{clip_id}/
type Store struct {
	logger zerolog.Logger
	root   string
	index  Index
}

// NewStore creates a moment store rooted at root (typically {data_root}/yt_moments)
func NewStore(logger zerolog.Logger, root string) *Store {
	return &Store{
		logger: logger.With().Str("component", "moment-store").Logger(),
		root:   root,
	}
}

// WithIndex attaches a computation index
func (s *Store) WithIndex(idx Index) *Store {
	s.index = idx
	return s
}

// Dir returns the cache directory of a (video, query, clip) triple
func (s *Store) Dir(videoID, query, clipID string) string {
	return filepath.Join(s.root, "video_"+videoID, SanitizeQuery(query), clipID)
}

// Cached parses the moment files of a clip. Files that do not parse, or
// that fall outside the clip, are logged and skipped.
func (s *Store) Cached(videoID, query string, clip clips.Segment) ([]Moment, error) {
	dir := s.Dir(videoID, query, clip.ID())
	names, err := util.ListFiles(dir, momentExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list moments in %s: %w", dir, err)
	}

	var out []Moment
	for _, name := range names {
		m, err := ParseFileName(name)
		if err == nil && (m.VideoID != videoID || !inClip(clip, m)) {
			err = fmt.Errorf("moment %q does not belong to clip %s", name, clip.ID())
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("skipping unparsable moment file")
			continue
		}
		m.ClipID = clip.ID()
		m.Path = filepath.Join(dir, name)
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Ordinal < out[j].Ordinal
	})
	return out, nil
}

// LastOrdinal returns the highest ordinal among the stored moments of query
// across segs, or 0 when none are stored. Clips that cannot be listed are
// logged and ignored.
func (s *Store) LastOrdinal(videoID, query string, segs []clips.Segment) int {
	last := 0
	for _, clip := range segs {
		cached, err := s.Cached(videoID, query, clip)
		if err != nil {
			s.logger.Warn().Err(err).Str("clip", clip.ID()).Msg("failed to read stored moments")
			continue
		}
		for _, m := range cached {
			last = max(last, m.Ordinal)
		}
	}
	return last
}

// GetOrCompute returns the cached moments of a clip for query, or runs
// compute and records its result. Moment files are authoritative: an index
// entry listing moments whose files are gone is recomputed.
func (s *Store) GetOrCompute(ctx context.Context, videoID, query string, clip clips.Segment, compute ComputeFunc) ([]Moment, error) {
	log := s.logger.With().Str("video", videoID).Str("query", query).Str("clip", clip.ID()).Logger()

	cached, err := s.Cached(videoID, query, clip)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		log.Info().Int("moments", len(cached)).Msg("using cached moments")
		return cached, nil
	}

	key := SanitizeQuery(query)
	if s.index != nil {
		c, ok, err := s.index.Computation(videoID, key, clip.ID())
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("index lookup failed")
		case ok && len(c.Moments) == 0:
			log.Info().Time("computed_at", c.ComputedAt).Msg("clip previously evaluated with no moment")
			return nil, nil
		case ok:
			log.Debug().Int("moments", len(c.Moments)).Msg("indexed moments missing on disk, recomputing")
		}
	}

	result, err := compute(ctx, s.Dir(videoID, query, clip.ID()))
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		rec := Computation{Moments: result, ComputedAt: time.Now().UTC()}
		if err := s.index.PutComputation(videoID, key, clip.ID(), rec); err != nil {
			log.Warn().Err(err).Msg("failed to record computation in index")
		}
	}

	return result, nil
}
