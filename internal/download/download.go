// Package download fetches source videos and lists those already on disk.
package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/pkg/util"
	"github.com/rs/zerolog"
)

// VideoExts are the container extensions recognized as downloaded videos
var VideoExts = []string{".mp4", ".mkv", ".avi"}

// ErrNotFound reports a video id with no downloaded file
var ErrNotFound = errors.New("video not found")

// Downloader fetches a video into the downloads directory
type Downloader interface {
	Download(ctx context.Context, rawURL, quality string) (*clips.Video, error)
}

var (
	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	heightPattern    = regexp.MustCompile(`^(\d+)p?$`)
)

// VideoID extracts the YouTube id from a watch, shorts or youtu.be URL
func VideoID(rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "https://www.youtube.com/") && !strings.HasPrefix(rawURL, "https://youtu.be/") {
		return "", fmt.Errorf("invalid YouTube URL: %s", rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid YouTube URL %s: %w", rawURL, err)
	}

	var id string
	switch {
	case u.Host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case u.Path == "/watch":
		id = u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/embed/"):
		_, id, _ = strings.Cut(strings.Trim(u.Path, "/"), "/")
	}

	if !youtubeIDPattern.MatchString(id) {
		return "", fmt.Errorf("no video id in YouTube URL: %s", rawURL)
	}
	return id, nil
}

// FormatSpec builds the yt-dlp -f selector for quality (best, worst, or a
// height such as 720p) and container format
func FormatSpec(quality, format string) (string, error) {
	switch quality {
	case "", "best":
		return fmt.Sprintf("bestvideo[ext=%[1]s]+bestaudio[ext=%[1]s]/best[ext=%[1]s]", format), nil
	case "worst":
		return fmt.Sprintf("worstvideo[ext=%[1]s]+worstaudio[ext=%[1]s]/worst[ext=%[1]s]", format), nil
	}

	m := heightPattern.FindStringSubmatch(quality)
	if m == nil {
		return "", fmt.Errorf("unknown quality %q (want best, worst or a height like 720p)", quality)
	}
	return fmt.Sprintf("bestvideo[ext=%[1]s][height<=%[2]s]+bestaudio[ext=%[1]s]/best[ext=%[1]s]", format, m[1]), nil
}

// ValidQuality reports whether FormatSpec accepts quality
func ValidQuality(quality string) bool {
	_, err := FormatSpec(quality, "mp4")
	return err == nil
}

// YouTube downloads videos with yt-dlp into dir/{id}.{format}
type YouTube struct {
	logger zerolog.Logger
	binary string
	dir    string
	format string
}

// NewYouTube creates a yt-dlp downloader
func NewYouTube(logger zerolog.Logger, binary, dir, format string) (*YouTube, error) {
	if binary == "" {
		binary = "yt-dlp"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not found (%s): %w", binary, err)
	}
	if format == "" {
		format = "mp4"
	}
	return &YouTube{
		logger: logger.With().Str("component", "downloader").Logger(),
		binary: path,
		dir:    dir,
		format: format,
	}, nil
}

// Download fetches rawURL unless the video is already present
func (y *YouTube) Download(ctx context.Context, rawURL, quality string) (*clips.Video, error) {
	id, err := VideoID(rawURL)
	if err != nil {
		return nil, err
	}
	spec, err := FormatSpec(quality, y.format)
	if err != nil {
		return nil, err
	}

	output := filepath.Join(y.dir, id+"."+y.format)
	video := &clips.Video{ID: id, Path: output}

	if util.FileExists(output) {
		y.logger.Info().Str("video", id).Str("path", output).Msg("video already downloaded")
		return video, nil
	}
	if err := util.EnsureDir(y.dir); err != nil {
		return nil, fmt.Errorf("failed to create downloads dir: %w", err)
	}

	y.logger.Info().
		Str("video", id).
		Str("quality", quality).
		Str("format", spec).
		Msg("downloading video")

	cmd := exec.CommandContext(ctx, y.binary,
		"-f", spec,
		"--merge-output-format", y.format,
		"--no-playlist",
		"--newline",
		"-o", output,
		rawURL,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var tail strings.Builder
	cmd.Stderr = &tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start yt-dlp: %w", err)
	}
	y.streamLog(stdout)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(tail.String()))
	}
	if !util.FileExists(output) {
		return nil, fmt.Errorf("yt-dlp finished but %s is missing", output)
	}

	y.logger.Info().Str("video", id).Str("path", output).Msg("download complete")
	return video, nil
}

func (y *YouTube) streamLog(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		y.logger.Debug().Str("output", scanner.Text()).Msg("yt-dlp")
	}
}

// List returns the videos in dir, ordered by file name. The video id is the
// file name without extension.
func List(dir string) ([]clips.Video, error) {
	names, err := util.ListFiles(dir, VideoExts...)
	if err != nil {
		return nil, err
	}

	videos := make([]clips.Video, 0, len(names))
	for _, name := range names {
		videos = append(videos, clips.Video{ID: util.TrimExt(name), Path: filepath.Join(dir, name)})
	}
	return videos, nil
}

// Find returns the downloaded video with the given id
func Find(dir, id string) (*clips.Video, error) {
	videos, err := List(dir)
	if err != nil {
		return nil, err
	}
	for _, v := range videos {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}
