package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"cadence/internal/job"
	"cadence/internal/layout"
	"cadence/internal/logging"
	"cadence/internal/services"
)

func newRenderCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		trackPath      string
		cuesPath       string
		backgroundPath string
		outputPath     string
		alignFlag      string
		positionFlag   string
		animationFlag  string
		fontSize       float64
	)

	cmd := &cobra.Command{
		Use:   "render AUDIO",
		Short: "Render a lyric video for an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger()
			if err != nil {
				return err
			}

			style, err := buildStyle(alignFlag, positionFlag, animationFlag, fontSize)
			if err != nil {
				return err
			}

			store, err := job.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if recovered, err := store.RecoverStale(ctx); err != nil {
				logger.Warn("recover stale jobs", logging.Error(err))
			} else if recovered > 0 {
				logger.Info("failed interrupted jobs from previous run", logging.Int64("count", recovered))
			}

			events := make(chan job.ProgressEvent, 64)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				reportProgress(cmd.OutOrStdout(), events)
			}()

			runner := job.NewRunner(cfg, store, logger)
			result, renderErr := runner.Render(ctx, job.Request{
				AudioPath:      args[0],
				TrackPath:      trackPath,
				CuesPath:       cuesPath,
				BackgroundPath: backgroundPath,
				OutputPath:     outputPath,
				Style:          style,
				Events:         events,
			})
			close(events)
			wg.Wait()

			if renderErr != nil {
				if services.Fatal(renderErr) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Input or configuration problem; nothing was rendered.")
				}
				if result != nil {
					return fmt.Errorf("job %s failed (%s): %w", result.ID, result.ErrorKind, renderErr)
				}
				return renderErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%d frames", result.OutputPath, result.FramesEncoded)
			if result.UsedFallback {
				fmt.Fprint(out, ", software fallback")
			}
			fmt.Fprintln(out, ")")
			return nil
		},
	}

	cmd.Flags().StringVar(&trackPath, "track", "", "Timing track JSON produced by audio analysis")
	cmd.Flags().StringVar(&cuesPath, "cues", "", "Lyric cue JSON file")
	cmd.Flags().StringVar(&backgroundPath, "background", "", "Background still image (PNG or JPEG)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output video path")
	cmd.Flags().StringVar(&alignFlag, "align", "", "Text alignment: left, center, right")
	cmd.Flags().StringVar(&positionFlag, "position", "", "Vertical position: top, center, bottom")
	cmd.Flags().StringVar(&animationFlag, "animation", "", "Text animation: none, pulse, glow")
	cmd.Flags().Float64Var(&fontSize, "font-size", 0, "Font size in points")
	_ = cmd.MarkFlagRequired("track")
	_ = cmd.MarkFlagRequired("cues")

	return cmd
}

func buildStyle(align, position, animation string, fontSize float64) (*layout.Style, error) {
	style := layout.DefaultStyle()

	parsedAlign, err := layout.ParseAlignment(align)
	if err != nil {
		return nil, err
	}
	style.Alignment = parsedAlign

	parsedPosition, err := layout.ParseVerticalPosition(position)
	if err != nil {
		return nil, err
	}
	style.VerticalPosition = parsedPosition

	parsedAnimation, err := layout.ParseAnimation(animation)
	if err != nil {
		return nil, err
	}
	style.Animation = parsedAnimation

	if fontSize > 0 {
		style.FontSize = fontSize
	}
	return &style, nil
}

// reportProgress drains the event stream. On a terminal it drives a progress
// bar; otherwise it stays quiet and leaves reporting to the structured logs.
func reportProgress(out io.Writer, events <-chan job.ProgressEvent) {
	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !interactive {
		for range events {
		}
		return
	}

	var bar *progressbar.ProgressBar
	for event := range events {
		if event.Status != job.StatusRendering || event.FramesExpected == 0 {
			continue
		}
		if bar == nil {
			bar = progressbar.NewOptions64(event.FramesExpected,
				progressbar.OptionSetDescription("rendering"),
				progressbar.OptionSetWriter(out),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set64(event.FramesEncoded)
	}
	if bar != nil {
		_ = bar.Finish()
	}
}
