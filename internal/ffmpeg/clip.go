package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/momentcut/pkg/util"
)

// ClipOptions defines clip extraction parameters
type ClipOptions struct {
	Start     time.Duration
	End       time.Duration
	Output    string
	CopyCodec bool // If true, use -c copy for fast extraction
	// Seek on the input (-ss before -i); fast, keyframe-aligned with stream copy
	InputSeek    bool
	VideoCodec   string
	AudioCodec   string
	CRF          int // Quality (0-51, lower = better)
	ProgressFunc ProgressFunc
}

// ExtractClip cuts a segment from a video
func (e *Executor) ExtractClip(ctx context.Context, input string, opts ClipOptions) error {
	duration := opts.End - opts.Start
	if duration <= 0 {
		return fmt.Errorf("invalid clip duration: end must be after start")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", duration).
		Bool("copy_codec", opts.CopyCodec).
		Msg("extracting clip")

	var args []string
	if opts.InputSeek {
		args = append(args, "-ss", util.FormatDuration(opts.Start), "-i", input)
	} else {
		args = append(args, "-i", input, "-ss", util.FormatDuration(opts.Start))
	}
	args = append(args, "-t", util.FormatDuration(duration))

	if opts.CopyCodec {
		args = append(args, "-c", "copy", "-avoid_negative_ts", "1")
	} else {
		codec := opts.VideoCodec
		if codec == "" {
			codec = DefaultVideoCodec
		}
		args = append(args, "-c:v", codec)

		audioCodec := opts.AudioCodec
		if audioCodec == "" {
			audioCodec = DefaultAudioCodec
		}
		args = append(args, "-c:a", audioCodec)

		crf := opts.CRF
		if crf == 0 {
			crf = DefaultCRF
		}
		args = append(args, "-crf", fmt.Sprintf("%d", crf), "-preset", DefaultPreset)
	}

	args = append(args, opts.Output)

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("clip extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("clip extraction complete")
	return nil
}

// Cutter adapts the executor to the trim capability used by the clip and
// moment stores: [start, end) seconds of input copied to output.
type Cutter struct {
	exec     *Executor
	reencode bool
}

// NewCutter returns a stream-copy cutter, or a re-encoding one when reencode is set
func NewCutter(exec *Executor, reencode bool) *Cutter {
	return &Cutter{exec: exec, reencode: reencode}
}

// Trim copies [start, end) seconds of input into output
func (c *Cutter) Trim(ctx context.Context, input string, start, end float64, output string) error {
	return c.exec.ExtractClip(ctx, input, ClipOptions{
		Start:     util.Seconds(start),
		End:       util.Seconds(end),
		Output:    output,
		CopyCodec: !c.reencode,
		InputSeek: !c.reencode,
	})
}
