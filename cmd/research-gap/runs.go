// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-gap/internal/store"
	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List archived crawl runs or preview one",
	Long: `Runs reads the SQLite archive written by crawl --db. Without arguments it
lists runs newest first; with a run id it previews that run's rows.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().String("db", "runs.db", "run archive database")
	runsCmd.Flags().Int("limit", 20, "maximum runs listed (0 for all)")
	runsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("run archive %s: %w", dbPath, err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(args) == 1 {
		return showRun(cmd.Context(), os.Stdout, s, args[0])
	}

	runs, err := s.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return formatRuns(os.Stdout, runs, jsonOutput)
}

func formatRuns(w io.Writer, runs []store.Run, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs archived.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-7s  %-9s  %6s  %-20s  %s\n", "Run", "Mode", "Status", "Rows", "Started", "Search")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-7s  %-9s  %6d  %-20s  %s\n",
			r.ID, r.Mode, r.Status, r.Rows, r.StartedAt.Format("2006-01-02 15:04:05"), r.Search)
	}
	return nil
}

func showRun(ctx context.Context, w io.Writer, s *store.Store, id string) error {
	grouped, err := s.GroupedRows(ctx, id)
	if err != nil {
		return err
	}
	if len(grouped) > 0 {
		fmt.Fprintf(w, "Run %s: %d grouped rows\n", id, len(grouped))
		table.Preview(w, types.GroupedColumns, table.GroupedRecords(grouped), previewRows)
		return nil
	}

	items, err := s.ItemRows(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Run %s: %d works\n", id, len(items))
	table.Preview(w, types.ItemColumns, table.ItemRecords(items), previewRows)
	return nil
}
