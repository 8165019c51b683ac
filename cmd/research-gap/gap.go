package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-gap/internal/gap"
	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

const defaultGapOutput = "data/gap_scores.csv"

var gapCmd = &cobra.Command{
	Use:   "gap",
	Short: "Score topics by global share minus local share",
	Long: `Gap reads two merged topic tables, one for the global literature and one
for a single institution, sums the selected count columns per topic and
writes Gap Score = global share - local share. High scores mark topics the
world works on that the institution does not.`,
	RunE: runGap,
}

func init() {
	gapCmd.Flags().String("global", "", "merged table of global topic counts")
	gapCmd.Flags().String("local", "", "merged table of institution topic counts")
	gapCmd.Flags().StringSlice("global-columns", nil, "global count columns to sum (default: all)")
	gapCmd.Flags().StringSlice("local-columns", nil, "local count columns to sum, e.g. 2024_Count,2025_Count (default: all)")
	gapCmd.Flags().String("output", defaultGapOutput, "gap score table path")
	gapCmd.Flags().String("short-names", "", "YAML map of topic label to short chart label")

	viper.BindPFlag("gap.global", gapCmd.Flags().Lookup("global"))
	viper.BindPFlag("gap.local", gapCmd.Flags().Lookup("local"))
	viper.BindPFlag("gap.global_columns", gapCmd.Flags().Lookup("global-columns"))
	viper.BindPFlag("gap.local_columns", gapCmd.Flags().Lookup("local-columns"))
	viper.BindPFlag("gap.output", gapCmd.Flags().Lookup("output"))
	viper.BindPFlag("gap.short_names_file", gapCmd.Flags().Lookup("short-names"))

	rootCmd.AddCommand(gapCmd)
}

func runGap(cmd *cobra.Command, args []string) error {
	cfg := types.GapConfig{
		GlobalPath:    viper.GetString("gap.global"),
		LocalPath:     viper.GetString("gap.local"),
		GlobalColumns: viper.GetStringSlice("gap.global_columns"),
		LocalColumns:  viper.GetStringSlice("gap.local_columns"),
		OutputPath:    viper.GetString("gap.output"),
	}
	if cfg.GlobalPath == "" || cfg.LocalPath == "" {
		return fmt.Errorf("--global and --local are required")
	}
	aliases, err := gap.LoadShortNames(viper.GetString("gap.short_names_file"))
	if err != nil {
		return err
	}
	cfg.ShortNames = aliases
	return scoreGaps(os.Stdout, cfg)
}

func scoreGaps(w io.Writer, cfg types.GapConfig) error {
	scores, err := gap.Build(cfg)
	if err != nil {
		return err
	}
	if err := gap.Write(cfg.OutputPath, scores); err != nil {
		return err
	}
	fmt.Fprintf(w, "Scored %d topics, written to %s\n", len(scores), cfg.OutputPath)
	table.Preview(w, gap.Columns, gap.Records(scores), previewRows)
	return nil
}
