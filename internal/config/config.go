package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Environment variables that override file values
const (
	EnvDataRoot            = "MOMENTCUT_DATA_ROOT"
	EnvConfidenceThreshold = "MOMENTCUT_CONFIDENCE_THRESHOLD"
	EnvPredictorBackend    = "MOMENTCUT_PREDICTOR_BACKEND"
	EnvServerAddr          = "MOMENTCUT_SERVER_ADDR"
)

// Dedup policies
const (
	DedupOverlap   = "overlap"
	DedupThreshold = "threshold"
)

// Predictor backends
const (
	BackendCommand = "command"
	BackendONNX    = "onnx"
)

// Config holds all application configuration
type Config struct {
	// Root of the on-disk layout (yt_downloads, yt_clipped, yt_moments, index.db)
	DataRoot string `yaml:"data_root"`

	FFmpeg     FFmpegConfig    `yaml:"ffmpeg"`
	Clips      ClipsConfig     `yaml:"clips"`
	Moments    MomentsConfig   `yaml:"moments"`
	Predictor  PredictorConfig `yaml:"predictor"`
	Highlights HighlightConfig `yaml:"highlights"`
	Download   DownloadConfig  `yaml:"download"`
	Server     ServerConfig    `yaml:"server"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"ffprobe_path"`
	Threads    int    `yaml:"threads"`
}

type ClipsConfig struct {
	LengthSeconds float64 `yaml:"length_seconds"`
	// Re-encode clip boundaries instead of stream copy
	Reencode      bool    `yaml:"reencode"`
}

type MomentsConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	DedupPolicy         string  `yaml:"dedup_policy"`
	OverlapRatio        float64 `yaml:"overlap_ratio"`
	TimeThreshold       float64 `yaml:"time_threshold"`
}

type PredictorConfig struct {
	Backend string     `yaml:"backend"`
	Command []string   `yaml:"command"`
	ONNX    ONNXConfig `yaml:"onnx"`
}

type ONNXConfig struct {
	LibraryPath   string  `yaml:"library_path"`
	ImageEncoder  string  `yaml:"image_encoder"`
	MomentHead    string  `yaml:"moment_head"`
	FrameInterval float64 `yaml:"frame_interval"`
	EmbedDim      int     `yaml:"embed_dim"`
	NumQueries    int     `yaml:"num_queries"`
	MaxFrames     int     `yaml:"max_frames"`
	QueryLen      int     `yaml:"query_len"`
}

type HighlightConfig struct {
	TranscribeCommand []string `yaml:"transcribe_command"`
	MinWindow         float64  `yaml:"min_window"`
	MaxWindow         float64  `yaml:"max_window"`
}

type DownloadConfig struct {
	Binary  string `yaml:"binary"`
	Quality string `yaml:"quality"`
	Format  string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads configuration from file or returns defaults, then applies
// .env and environment overrides
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	// .env is optional; variables already set in the process win
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.DataRoot == "" {
		return fmt.Errorf("data_root is required")
	}
	if c.Clips.LengthSeconds <= 0 {
		return fmt.Errorf("clips.length_seconds must be positive, got %v", c.Clips.LengthSeconds)
	}
	if t := c.Moments.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("moments.confidence_threshold must be within [0,1], got %v", t)
	}
	switch c.Moments.DedupPolicy {
	case DedupOverlap, DedupThreshold:
	default:
		return fmt.Errorf("unknown moments.dedup_policy %q", c.Moments.DedupPolicy)
	}
	switch c.Predictor.Backend {
	case BackendCommand, BackendONNX:
	default:
		return fmt.Errorf("unknown predictor.backend %q", c.Predictor.Backend)
	}
	return nil
}

// Directory layout under DataRoot

func (c *Config) DownloadsDir() string { return filepath.Join(c.DataRoot, "yt_downloads") }
func (c *Config) ClipsDir() string { return filepath.Join(c.DataRoot, "yt_clipped") }
func (c *Config) MomentsDir() string { return filepath.Join(c.DataRoot, "yt_moments") }
func (c *Config) IndexPath() string { return filepath.Join(c.DataRoot, "index.db") }

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDataRoot); v != "" {
		c.DataRoot = v
	}
	if v := os.Getenv(EnvConfidenceThreshold); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvConfidenceThreshold, v, err)
		}
		c.Moments.ConfidenceThreshold = t
	}
	if v := os.Getenv(EnvPredictorBackend); v != "" {
		c.Predictor.Backend = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
	return nil
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		DataRoot: "./data",
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Clips: ClipsConfig{
			LengthSeconds: 149,
		},
		Moments: MomentsConfig{
			ConfidenceThreshold: 0.75,
			DedupPolicy:         DedupOverlap,
			OverlapRatio:        0.5,
			TimeThreshold:       1.0,
		},
		Predictor: PredictorConfig{
			Backend: BackendCommand,
			Command: []string{"lighthouse-predict"},
			ONNX: ONNXConfig{
				ImageEncoder:  "./weights/clip_image_encoder.onnx",
				MomentHead:    "./weights/cg_detr_head.onnx",
				FrameInterval: 2,
				EmbedDim:      512,
				NumQueries:    10,
				MaxFrames:     75,
				QueryLen:      32,
			},
		},
		Highlights: HighlightConfig{
			MinWindow: 15,
			MaxWindow: 149,
		},
		Download: DownloadConfig{
			Binary:  "yt-dlp",
			Quality: "worst",
			Format:  "mp4",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".momentcut", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
