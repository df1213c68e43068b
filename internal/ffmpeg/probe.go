package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/keagan/momentcut/pkg/util"
)

// ProbeVideo extracts metadata from a video file
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", filePath, err)
	}

	return parseProbeOutput(filePath, output)
}

// ProbeDuration returns the whole-second duration derived from the decoded
// frame count and frame rate, floor(frames / fps)
func (e *Executor) ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	info, err := e.ProbeVideo(ctx, filePath)
	if err != nil {
		return 0, err
	}

	d, err := frameDuration(info)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filePath, err)
	}

	e.logger.Debug().
		Str("video", filePath).
		Int64("frames", info.FrameCount).
		Float64("fps", info.FPS).
		Float64("duration", d).
		Msg("probed duration")

	return d, nil
}

func frameDuration(info *VideoInfo) (float64, error) {
	if info.FPS <= 0 {
		return 0, fmt.Errorf("no video frame rate")
	}

	frames := info.FrameCount
	if frames <= 0 {
		// Containers without nb_frames: estimate from container duration
		frames = int64(math.Round(info.Duration.Seconds() * info.FPS))
	}
	if frames <= 0 {
		return 0, fmt.Errorf("no decodable frames")
	}

	return math.Floor(float64(frames) / info.FPS), nil
}

func parseProbeOutput(filePath string, output []byte) (*VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{
		FilePath: filePath,
	}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(dur * float64(time.Second))
	}

	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName

			// r_frame_rate is e.g. "30/1"; avg_frame_rate is the fallback for VFR sources
			info.FPS = util.ParseFrameRate(stream.RFrameRate)
			if info.FPS == 0 {
				info.FPS = util.ParseFrameRate(stream.AvgFrameRate)
			}
			if n, err := strconv.ParseInt(stream.NbFrames, 10, 64); err == nil {
				info.FrameCount = n
			}
		case "audio":
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
		}
	}

	if info.VideoCodec == "" {
		return nil, fmt.Errorf("no video stream in %s", filePath)
	}

	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}
