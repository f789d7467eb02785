package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"cadence/internal/deps"
)

func newDepsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			out := cmd.OutOrStdout()

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Dependency", "Command", "Available", "Detail"})
			missing := false
			ffmpegOK := false
			for _, status := range statuses {
				tw.AppendRow(table.Row{status.Name, status.Command, yesNo(status.Available), status.Detail})
				if !status.Available && !status.Optional {
					missing = true
				}
				if status.Name == "FFmpeg" && status.Available {
					ffmpegOK = true
				}
			}
			fmt.Fprintln(out, tw.Render())

			if ffmpegOK {
				codec, err := deps.HardwareEncoder(cmd.Context(), cfg.Encoder.FFmpegBinary)
				switch {
				case err != nil:
					fmt.Fprintf(out, "Hardware encoder probe failed: %v\n", err)
				case codec == "":
					fmt.Fprintln(out, "Hardware H.264 encoder: none (software encoding will be used)")
				default:
					fmt.Fprintf(out, "Hardware H.264 encoder: %s\n", codec)
				}
			}

			if missing {
				return fmt.Errorf("required dependencies are missing")
			}
			return nil
		},
	}
}
