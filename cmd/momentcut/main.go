package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/keagan/momentcut/internal/api"
	"github.com/keagan/momentcut/internal/clips"
	"github.com/keagan/momentcut/internal/config"
	"github.com/keagan/momentcut/internal/download"
	"github.com/keagan/momentcut/internal/logging"
	"github.com/keagan/momentcut/internal/moments"
	"github.com/keagan/momentcut/internal/pipeline"
	"github.com/keagan/momentcut/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	verbose bool
	logFile string

	quality string
	strict  bool
	addr    string
	windows []string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "momentcut",
	Short: "momentcut - find the moments of a video that match a text query",
	Long:  "Downloads videos, splits them into clips and cuts out the moments a retrieval model finds for a free-text query.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != "" {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			logging.Init(verbose, f)
		} else {
			logging.Init(verbose)
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append JSON logs to this file")

	downloadCmd.Flags().StringVarP(&quality, "quality", "q", "", "best, worst or a height like 720p (default from config)")
	clipCmd.Flags().StringArrayVarP(&windows, "window", "w", nil, "clip window START-END, e.g. 02:29-04:58 (repeatable)")
	queryCmd.Flags().BoolVar(&strict, "strict", false, "abort on the first missing clip")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(clipCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// openRuntime wires the application from the loaded config
func openRuntime(cmd *cobra.Command) (*pipeline.Runtime, error) {
	return pipeline.Open(log.Logger, config.FromContext(cmd.Context()))
}

var downloadCmd = &cobra.Command{
	Use:   "download [youtube url]",
	Short: "Download a YouTube video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		d, err := download.NewYouTube(log.Logger, cfg.Download.Binary, cfg.DownloadsDir(), cfg.Download.Format)
		if err != nil {
			return err
		}

		q := quality
		if q == "" {
			q = cfg.Download.Quality
		}
		video, err := d.Download(cmd.Context(), args[0], q)
		if err != nil {
			return err
		}

		fmt.Printf("%s\t%s\n", video.ID, video.Path)
		return nil
	},
}

var clipCmd = &cobra.Command{
	Use:   "clip [video id]",
	Short: "Split a downloaded video into clips",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ws := make([]clips.Window, 0, len(windows))
		for _, raw := range windows {
			w, err := clips.ParseWindow(raw)
			if err != nil {
				return err
			}
			ws = append(ws, w)
		}

		video, err := rt.Video(args[0])
		if err != nil {
			return err
		}
		segs, err := rt.Pipeline.PrepareWindows(cmd.Context(), *video, ws)
		if err != nil {
			return err
		}

		for _, s := range segs {
			fmt.Printf("%03d\t%s\t%s\t%s\n", s.Index, util.FormatDuration(util.Seconds(s.Start)), util.FormatDuration(util.Seconds(s.End)), s.Path)
		}
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [video id] [query...]",
	Short: "Find the moments of a video matching a text query",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		video, err := rt.Video(args[0])
		if err != nil {
			return err
		}

		query := strings.Join(args[1:], " ")
		result, err := rt.Pipeline.Run(cmd.Context(), *video, query, pipeline.QueryOptions{Strict: strict})
		if err != nil {
			return err
		}

		printMoments(result.Moments)
		log.Info().
			Str("run_id", result.RunID).
			Int("moments", len(result.Moments)).
			Int("clips", result.Clips).
			Strs("skipped", result.Skipped).
			Msg("query complete")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list [videos|clips|queries|moments] [video id] [query...]",
	Short: "List downloaded videos, or the clips, queries or moments of a video",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		switch args[0] {
		case "videos":
			videos, err := download.List(cfg.DownloadsDir())
			if err != nil {
				return err
			}
			for _, v := range videos {
				fmt.Printf("%s\t%s\n", v.ID, v.Path)
			}
			return nil

		case "clips":
			if len(args) != 2 {
				return fmt.Errorf("usage: list clips [video id]")
			}
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			recorded, err := rt.Index.Clips(args[1])
			if err != nil {
				return err
			}
			if recorded == nil {
				if recorded, err = rt.Clips.Cached(args[1]); err != nil {
					return err
				}
			}

			dir := rt.Clips.Dir(args[1])
			if len(recorded) == 0 && !util.DirExists(dir) {
				return fmt.Errorf("video %s has not been clipped yet", args[1])
			}
			for _, s := range recorded {
				state := "ok"
				if !util.FileExists(filepath.Join(dir, s.FileName())) {
					state = "missing"
				}
				fmt.Printf("%03d\t%.1f\t%.1f\t%s\t%s\n", s.Index, s.Start, s.End, state, s.FileName())
			}
			return nil

		case "queries":
			if len(args) != 2 {
				return fmt.Errorf("usage: list queries [video id]")
			}
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			qs, err := rt.Index.Queries(args[1])
			if err != nil {
				return err
			}
			for _, q := range qs {
				fmt.Println(q)
			}
			return nil

		case "moments":
			if len(args) < 3 {
				return fmt.Errorf("usage: list moments [video id] [query...]")
			}
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			query := strings.Join(args[2:], " ")
			ms, err := rt.Index.Moments(args[1], moments.SanitizeQuery(query))
			if err != nil {
				return err
			}
			printMoments(ms)
			return nil
		}

		return fmt.Errorf("unknown resource %q (want videos, clips, queries or moments)", args[0])
	},
}

func printMoments(ms []moments.Moment) {
	for _, m := range ms {
		fmt.Printf("%03d\t%.1f\t%.1f\t%.2f\t%s\n", m.Ordinal, m.Start, m.End, m.Confidence, m.Path)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		listen := addr
		if listen == "" {
			listen = rt.Config.Server.Addr
		}

		srv := api.NewServer(log.Logger, api.NewRuntimeService(rt))
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Listen(listen)
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
