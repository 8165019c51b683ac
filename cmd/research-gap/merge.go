package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-gap/internal/merge"
	"github.com/pdiddy/research-gap/internal/store"
	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

const (
	defaultDataDir     = "data"
	defaultMergeOutput = "data/topic_yearly_counts.csv"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Join per-year topic counts into one wide table",
	Long: `Merge outer-joins per-partition topic count files (<data-dir>/<label>.csv
with name and count columns) on the topic name. Each label becomes a
<label>_Count column; topics missing from a partition count 0.

With --from-crawl the years come from a grouped crawl table instead, and
with --from-run from a run archived by crawl --db.`,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().String("data-dir", defaultDataDir, "directory holding <label>.csv files")
	mergeCmd.Flags().StringSlice("labels", nil, "partitions to merge, in column order (default: last six years plus preprint)")
	mergeCmd.Flags().String("from-crawl", "", "grouped crawl CSV to pivot instead of --data-dir")
	mergeCmd.Flags().String("from-run", "", "archived grouped run id to pivot (requires --db)")
	mergeCmd.Flags().String("db", "", "run archive database")
	mergeCmd.Flags().String("output", defaultMergeOutput, "merged table path")

	viper.BindPFlag("merge.data_dir", mergeCmd.Flags().Lookup("data-dir"))
	viper.BindPFlag("merge.labels", mergeCmd.Flags().Lookup("labels"))
	viper.BindPFlag("merge.output", mergeCmd.Flags().Lookup("output"))

	rootCmd.AddCommand(mergeCmd)
}

// defaultLabels mirrors the crawl's default year window plus preprints.
func defaultLabels(now time.Time) []string {
	var labels []string
	for y := now.Year() - defaultYearSpan; y <= now.Year(); y++ {
		labels = append(labels, strconv.Itoa(y))
	}
	return append(labels, "preprint")
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg := types.MergeConfig{
		DataDir:    viper.GetString("merge.data_dir"),
		Labels:     viper.GetStringSlice("merge.labels"),
		OutputPath: viper.GetString("merge.output"),
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = defaultLabels(time.Now())
	}
	fromCrawl, _ := cmd.Flags().GetString("from-crawl")
	fromRun, _ := cmd.Flags().GetString("from-run")
	dbPath, _ := cmd.Flags().GetString("db")

	wide, err := loadWide(cmd.Context(), os.Stdout, cfg, fromCrawl, fromRun, dbPath)
	if err != nil {
		return err
	}
	return writeMerged(os.Stdout, cfg.OutputPath, wide)
}

func loadWide(ctx context.Context, w io.Writer, cfg types.MergeConfig, fromCrawl, fromRun, dbPath string) (*merge.Wide, error) {
	switch {
	case fromCrawl != "" && fromRun != "":
		return nil, fmt.Errorf("--from-crawl and --from-run are mutually exclusive")
	case fromCrawl != "":
		rows, err := table.ReadGrouped(fromCrawl)
		if err != nil {
			return nil, err
		}
		return mergeGrouped(rows, fromCrawl)
	case fromRun != "":
		if dbPath == "" {
			return nil, fmt.Errorf("--from-run requires --db")
		}
		s, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		rows, err := s.GroupedRows(ctx, fromRun)
		if err != nil {
			return nil, err
		}
		return mergeGrouped(rows, "run "+fromRun)
	default:
		return merge.Dir(cfg, w)
	}
}

func mergeGrouped(rows []types.GroupedRow, source string) (*merge.Wide, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s has no grouped rows", source)
	}
	return merge.Inputs(merge.FromGrouped(rows)), nil
}

func writeMerged(w io.Writer, output string, wide *merge.Wide) error {
	if err := merge.Write(output, wide); err != nil {
		return err
	}
	fmt.Fprintf(w, "Successfully merged %d partition(s): %d topics written to %s\n", len(wide.Labels), len(wide.Rows), output)
	table.Preview(w, wide.Header(), wide.Records(), previewRows)
	return nil
}
