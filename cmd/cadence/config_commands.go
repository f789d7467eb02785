package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cadence/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set paths.font_path to a TTF or OTF font before rendering.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Validate and display the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, exists, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Configuration: %s\n", resolvedPath)
			} else {
				fmt.Fprintln(out, "Configuration: built-in defaults (no file found)")
			}
			fmt.Fprintf(out, "Output dir:    %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "Work dir:      %s\n", cfg.Paths.WorkDir)
			fmt.Fprintf(out, "Font:          %s\n", fontLabel(cfg.Paths.FontPath))
			fmt.Fprintf(out, "Frame:         %dx%d @ %d fps\n", cfg.Frame.Width, cfg.Frame.Height, cfg.Frame.FPS)
			fmt.Fprintf(out, "Safe zone:     left %d right %d top %d bottom %d\n",
				cfg.SafeZone.Left, cfg.SafeZone.Right, cfg.SafeZone.Top, cfg.SafeZone.Bottom)
			fmt.Fprintf(out, "Canvas pad:    %d\n", cfg.Canvas.Pad)
			fmt.Fprintf(out, "Workers:       %d (pool %d, reorder window %d)\n",
				cfg.Pipeline.Workers, cfg.Pipeline.PoolSize, cfg.Pipeline.ReorderWindow)
			fmt.Fprintf(out, "Encoder:       %s (crf %d, preset %s)\n",
				cfg.Encoder.Preferred, cfg.Encoder.CRF, cfg.Encoder.Preset)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "path", "p", "", "Configuration file to inspect")
	return cmd
}

func fontLabel(path string) string {
	if strings.TrimSpace(path) == "" {
		return "(built-in bitmap font)"
	}
	return path
}
