package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

// runOptions holds the parsed command line.
type runOptions struct {
	modes         []int
	noScores      bool
	noStats       bool
	debug         bool
	configPath    string
	chunkSize     int
	exportParquet bool
}

// runFunc executes a recalculation; tests swap it out.
type runFunc func(ctx context.Context, opts runOptions, out io.Writer) error

func newRootCmd(run runFunc) *cobra.Command {
	opts := runOptions{}

	rootCmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recalculate score ratings and player statistics.",
		Long: `Recalc rates every best score of the selected modes again, stores the new
values and rebuilds player aggregates and leaderboards from them.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Recalculate player statistics only (same as --no-scores).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := opts
			o.noScores = true
			if err := o.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), o, cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(statsCmd)

	flags := rootCmd.PersistentFlags()
	flags.IntSliceVar(&opts.modes, "mode", nil, "Mode(s) to recalculate: "+modeChoices()+" (repeatable or comma separated; default all)")
	flags.BoolVar(&opts.noScores, "no-scores", false, "Skip score recalculation")
	flags.BoolVar(&opts.noStats, "no-stats", false, "Skip user stats recalculation")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (default: $PPRATING_CONFIG)")
	flags.IntVar(&opts.chunkSize, "chunk-size", 0, "Concurrent tasks per chunk (default from config)")
	flags.BoolVar(&opts.exportParquet, "export-parquet", false, "Also export score changes as parquet")

	return rootCmd
}

func (o runOptions) validate() error {
	for _, m := range o.modes {
		if !mods.Mode(m).Valid() {
			return fmt.Errorf("invalid mode %d (choose from %s)", m, modeChoices())
		}
	}
	if o.chunkSize < 0 {
		return fmt.Errorf("chunk-size must not be negative")
	}
	return nil
}

func (o runOptions) selectedModes() []mods.Mode {
	if len(o.modes) == 0 {
		return append([]mods.Mode(nil), mods.AllModes...)
	}
	out := make([]mods.Mode, 0, len(o.modes))
	seen := make(map[int]bool, len(o.modes))
	for _, m := range o.modes {
		if !seen[m] {
			seen[m] = true
			out = append(out, mods.Mode(m))
		}
	}
	return out
}

func modeChoices() string {
	s := make([]string, len(mods.AllModes))
	for i, m := range mods.AllModes {
		s[i] = fmt.Sprint(int(m))
	}
	return strings.Join(s, ",")
}
