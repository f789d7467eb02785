package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"cadence/internal/job"
)

func newJobsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List render jobs and their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := job.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs recorded.")
				return nil
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"ID", "Status", "Audio", "Progress", "Fallback", "Error"})
			for _, j := range jobs {
				progress := strconv.FormatInt(j.FramesEncoded, 10) + "/" + strconv.FormatInt(j.FramesExpected, 10)
				detail := j.ErrorKind
				if j.Status == job.StatusCompleted {
					detail = j.OutputPath
				}
				tw.AppendRow(table.Row{
					shortID(j.ID), string(j.Status), j.AudioPath, progress, yesNo(j.UsedFallback), detail,
				})
			}
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Number: 4, Align: text.AlignRight},
			})
			fmt.Fprintln(out, tw.Render())
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
