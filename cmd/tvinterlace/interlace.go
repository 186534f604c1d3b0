package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/davesmith10/tvinterlace/internal/config"
	"github.com/davesmith10/tvinterlace/internal/pipeline"
	"github.com/spf13/cobra"
)

var interlaceCmd = &cobra.Command{
	Use:   "interlace [files...]",
	Short: "Blank every odd scanline and save next to the input as <name>-interlaced.<ext>",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInterlace,
}

func init() {
	interlaceCmd.Flags().String("suffix", config.DefaultSuffix, "Suffix inserted before the output extension (env "+config.EnvSuffix+")")
	interlaceCmd.Flags().IntP("jobs", "j", 1, "Files processed in parallel, 0 for one per CPU (env "+config.EnvJobs+")")
	interlaceCmd.Flags().String("env-file", "", "Read defaults from this file instead of ./.env")
	rootCmd.AddCommand(interlaceCmd)
}

func runInterlace(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")

	var dotenv []string
	if envFile != "" {
		if _, err := os.Stat(envFile); err != nil {
			return fmt.Errorf("env file: %w", err)
		}
		dotenv = append(dotenv, envFile)
	}

	cfg, err := config.Load(dotenv...)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("suffix") {
		cfg.Suffix, _ = cmd.Flags().GetString("suffix")
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Jobs, _ = cmd.Flags().GetInt("jobs")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	results := pipeline.Run(ctx, args, pipeline.Options{
		Suffix: cfg.Suffix,
		Jobs:   cfg.Jobs,
		Logger: logger,
	})

	for _, r := range results {
		switch r.Status {
		case pipeline.StatusSaved:
			fmt.Printf("Saved  %s\n", r.Output)
		case pipeline.StatusSkipped:
			fmt.Fprintf(os.Stderr, "Skip   %s: %v\n", r.Input, r.Err)
		case pipeline.StatusFailed:
			fmt.Fprintf(os.Stderr, "Failed %s: %v\n", r.Output, r.Err)
		}
	}

	saved, skipped, failed := pipeline.Summarize(results)
	fmt.Printf("Interlaced %d file(s), skipped %d, failed %d\n", saved, skipped, failed)

	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be saved", failed)
	}
	return nil
}
