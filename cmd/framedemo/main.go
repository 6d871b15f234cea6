// Command framedemo runs the framesync frame loop on a headless GPU device
// and reports frame statistics.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:   "framedemo",
		Short: "Run the frame synchronization loop on a headless GPU device",
		Example: `  framedemo --frames 600 --frames-in-flight 3 --resize-every 100
  framedemo --config demo.toml --trace`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgPath != "" {
				if !FileExists(cfgPath) {
					return fmt.Errorf("config file %s not found", cfgPath)
				}
				fc, err := LoadFileConfig(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, _ := parseLevel(cfg.LogLevel)
			log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err := run(ctx, cfg, stdout, log)
			return err
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to a TOML config file")
	root.Flags().IntVar(&cfg.Frames, "frames", cfg.Frames, "number of frame attempts to run")
	root.Flags().IntVar(&cfg.FramesInFlight, "frames-in-flight", cfg.FramesInFlight, "frames the CPU may queue ahead of the GPU")
	root.Flags().IntVar(&cfg.Images, "images", cfg.Images, "swapchain image count")
	root.Flags().Uint32Var(&cfg.Width, "width", cfg.Width, "surface width")
	root.Flags().Uint32Var(&cfg.Height, "height", cfg.Height, "surface height")
	root.Flags().IntVar(&cfg.ResizeEvery, "resize-every", cfg.ResizeEvery, "resize the surface every N frames (0 disables)")
	root.Flags().IntVar(&cfg.SuboptimalEvery, "suboptimal-every", cfg.SuboptimalEvery, "mark the surface suboptimal every N frames (0 disables)")
	root.Flags().IntVar(&cfg.Recorders, "recorders", cfg.Recorders, "recorders per frame")
	root.Flags().IntVar(&cfg.RecordWorkers, "record-workers", cfg.RecordWorkers, "goroutines recording in parallel (0 records inline)")
	root.Flags().DurationVar(&cfg.FenceTimeout, "fence-timeout", cfg.FenceTimeout, "bound on in-flight fence waits")
	root.Flags().BoolVar(&cfg.Trace, "trace", cfg.Trace, "print every state transition")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")

	root.SetOut(stdout)
	root.SetErr(stderr)
	return root
}
