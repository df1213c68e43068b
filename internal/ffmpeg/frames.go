package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/keagan/momentcut/pkg/util"
)

// FrameOptions controls frame sampling
type FrameOptions struct {
	// Seconds between sampled frames
	Interval float64
	Width    int
	Height   int
	// Upper bound on sampled frames, 0 for unlimited
	MaxFrames int
}

// ExtractFrames samples JPEG frames from input into outDir and returns their
// paths in timeline order
func (e *Executor) ExtractFrames(ctx context.Context, input, outDir string, opts FrameOptions) ([]string, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("frame interval must be positive")
	}
	if err := util.EnsureDir(outDir); err != nil {
		return nil, err
	}

	filter := SampleChain(opts.Interval, opts.Width, opts.Height)

	args := []string{"-i", input, "-vf", filter.String()}
	if opts.MaxFrames > 0 {
		args = append(args, "-frames:v", fmt.Sprintf("%d", opts.MaxFrames))
	}
	args = append(args, "-q:v", "2", filepath.Join(outDir, "frame_%05d.jpg"))

	err := e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("frame extraction")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}

	names, err := util.ListFiles(outDir, ".jpg")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(outDir, n)
	}
	return paths, nil
}
