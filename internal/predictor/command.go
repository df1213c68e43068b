package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/keagan/momentcut/pkg/util"
	"github.com/rs/zerolog"
)

// CommandPredictor drives an external model process with two subcommands:
//
//	<argv...> encode --clip <clip.mp4> --out <features file>
//	<argv...> predict --features <features file> --query <text>
//
// predict prints {"pred_relevant_windows": [[start, end, confidence], ...]}.
type CommandPredictor struct {
	logger  zerolog.Logger
	argv    []string
	tempDir string
}

// NewCommandPredictor creates a predictor over argv; features are staged in tempDir
func NewCommandPredictor(logger zerolog.Logger, argv []string, tempDir string) (*CommandPredictor, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("predictor command is required")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("predictor command not found (%s): %w", argv[0], err)
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &CommandPredictor{
		logger:  logger.With().Str("component", "predictor").Str("backend", "command").Logger(),
		argv:    argv,
		tempDir: tempDir,
	}, nil
}

type fileFeatures struct {
	path string
}

func (f *fileFeatures) Release() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Encode runs the encode subcommand for one clip
func (c *CommandPredictor) Encode(ctx context.Context, clipPath string) (Features, error) {
	if _, err := os.Stat(clipPath); err != nil {
		return nil, fmt.Errorf("clip not readable: %w", err)
	}

	tmp, err := os.CreateTemp(c.tempDir, "features_*.bin")
	if err != nil {
		return nil, fmt.Errorf("failed to stage features: %w", err)
	}
	tmp.Close()

	c.logger.Debug().Str("clip", clipPath).Str("features", tmp.Name()).Msg("encoding clip")

	if _, err := c.run(ctx, "encode", "--clip", clipPath, "--out", tmp.Name()); err != nil {
		util.CleanupFiles(tmp.Name())
		return nil, fmt.Errorf("encode failed: %w", err)
	}
	return &fileFeatures{path: tmp.Name()}, nil
}

// Predict runs the predict subcommand against previously encoded features
func (c *CommandPredictor) Predict(ctx context.Context, query string, features Features) (*Prediction, error) {
	ff, ok := features.(*fileFeatures)
	if !ok {
		return nil, fmt.Errorf("features were not produced by the command predictor")
	}

	out, err := c.run(ctx, "predict", "--features", ff.path, "--query", query)
	if err != nil {
		return nil, fmt.Errorf("predict failed: %w", err)
	}
	return decodePrediction(out)
}

func (c *CommandPredictor) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append(append([]string{}, c.argv[1:]...), args...)
	cmd := exec.CommandContext(ctx, c.argv[0], full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		c.logger.Debug().Str("stderr", msg).Str("subcommand", args[0]).Msg("predictor output")
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// decodePrediction requires the pred_relevant_windows key to be present
func decodePrediction(data []byte) (*Prediction, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredictionMalformed, err)
	}

	windows, ok := raw["pred_relevant_windows"]
	if !ok {
		return nil, fmt.Errorf("%w: missing pred_relevant_windows", ErrPredictionMalformed)
	}

	var p Prediction
	if err := json.Unmarshal(windows, &p.RelevantWindows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredictionMalformed, err)
	}
	return &p, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
