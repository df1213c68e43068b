package highlight

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/keagan/momentcut/internal/ffmpeg"
	"github.com/rs/zerolog"
)

// Transcriber produces a transcript of a video
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string) (*Transcript, error)
}

// AudioExtractor pulls the audio track of a video into a file
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input, output string, format ffmpeg.AudioFormat) error
}

// CommandTranscriber extracts 16kHz mono audio and runs an external
// transcription command as `<argv...> <audio.wav>`, which prints transcript
// JSON on stdout
type CommandTranscriber struct {
	logger  zerolog.Logger
	audio   AudioExtractor
	argv    []string
	tempDir string
}

// NewCommandTranscriber creates a transcriber over argv
func NewCommandTranscriber(logger zerolog.Logger, audio AudioExtractor, argv []string, tempDir string) (*CommandTranscriber, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("transcribe command is required")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("transcribe command not found (%s): %w", argv[0], err)
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &CommandTranscriber{
		logger:  logger.With().Str("component", "transcriber").Logger(),
		audio:   audio,
		argv:    argv,
		tempDir: tempDir,
	}, nil
}

// Transcribe runs audio extraction then the transcription command
func (c *CommandTranscriber) Transcribe(ctx context.Context, videoPath string) (*Transcript, error) {
	dir, err := os.MkdirTemp(c.tempDir, "transcribe_*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "audio.wav")
	if err := c.audio.ExtractAudio(ctx, videoPath, wav, ffmpeg.DefaultWhisperFormat()); err != nil {
		return nil, fmt.Errorf("failed to extract audio: %w", err)
	}

	args := append(append([]string{}, c.argv[1:]...), wav)
	cmd := exec.CommandContext(ctx, c.argv[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Info().Str("video", videoPath).Msg("transcribing")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("transcription failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		c.logger.Debug().Str("stderr", msg).Msg("transcriber output")
	}

	t, err := ParseTranscript(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("video", videoPath).
		Int("segments", len(t.Segments)).
		Msg("transcription complete")

	return t, nil
}
