// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-gap/internal/crawl"
	"github.com/pdiddy/research-gap/internal/httputil"
	"github.com/pdiddy/research-gap/internal/openalex"
	"github.com/pdiddy/research-gap/internal/secrets"
	"github.com/pdiddy/research-gap/internal/store"
	"github.com/pdiddy/research-gap/internal/table"
	"github.com/pdiddy/research-gap/pkg/types"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultUserAgent       = "research-gap/0.1"
	defaultGroupedPageSize = 50
	defaultCursorPageSize  = 200
	defaultYearSpan        = 5
	defaultGroupedOutput   = "concept_by_year.csv"
	defaultCursorOutput    = "works_by_concept.csv"
	previewRows            = 5
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Collect works from the OpenAlex API into a CSV table",
	Long: `Crawl queries the OpenAlex works endpoint one request at a time and
writes a flat CSV table plus a run manifest next to it.

  crawl grouped  one group-by query per publication year (concept counts)
  crawl cursor   walks every matching work with cursor pagination

A contact email is sent with every request. Pass --mailto or store it in
.secrets/openalex-email.`,
}

var crawlGroupedCmd = &cobra.Command{
	Use:   "grouped",
	Short: "Count works per concept for each publication year",
	RunE:  runCrawlGrouped,
}

var crawlCursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "List every matching work with its primary concept and author",
	RunE:  runCrawlCursor,
}

func init() {
	pf := crawlCmd.PersistentFlags()
	pf.String("search", "", "free-text search term")
	pf.String("mailto", "", "contact email sent with every request")
	pf.Int("from", 0, "first publication year (default: current year minus 5)")
	pf.Int("to", 0, "last publication year (default: current year)")
	pf.String("filter", "", "extra OpenAlex filter expression, ANDed with the year filter")
	pf.Int("per-page", 0, "page size (default 50 grouped, 200 cursor)")
	pf.String("output", "", "output CSV path")
	pf.Duration("timeout", defaultTimeout, "HTTP request timeout")
	pf.Int("max-attempts", 3, "attempts per request before giving up")
	pf.String("plan", "", "YAML crawl plan (overrides --from/--to)")
	pf.String("db", "", "SQLite database that archives completed runs")
	pf.String("endpoint", openalex.DefaultEndpoint, "works search endpoint")
	pf.MarkHidden("endpoint")

	for _, name := range []string{"search", "mailto", "from", "to", "filter", "per-page", "output", "timeout", "max-attempts", "plan", "db", "endpoint"} {
		viper.BindPFlag("crawl."+strings.ReplaceAll(name, "-", "_"), pf.Lookup(name))
	}

	crawlGroupedCmd.Flags().String("group-by", crawl.DefaultGroupBy, "aggregation key")
	crawlGroupedCmd.Flags().String("partial", string(types.PartialDiscard), "on failure: discard or keep completed years")
	viper.BindPFlag("crawl.group_by", crawlGroupedCmd.Flags().Lookup("group-by"))
	viper.BindPFlag("crawl.partial", crawlGroupedCmd.Flags().Lookup("partial"))

	crawlCursorCmd.Flags().StringSlice("select", crawl.DefaultFields, "fields requested per work")
	crawlCursorCmd.Flags().Duration("page-delay", crawl.DefaultPageDelay, "pause between pages")
	viper.BindPFlag("crawl.select", crawlCursorCmd.Flags().Lookup("select"))
	viper.BindPFlag("crawl.page_delay", crawlCursorCmd.Flags().Lookup("page-delay"))

	crawlCmd.AddCommand(crawlGroupedCmd, crawlCursorCmd)
	rootCmd.AddCommand(crawlCmd)
}

// crawlConfig assembles the crawl settings from flags, config file,
// environment and secrets, in that order of precedence.
func crawlConfig(defaultOutput string) (types.CrawlConfig, error) {
	email := secrets.Resolve(viper.GetString("crawl.mailto"), loadedSecrets, secrets.OpenAlexEmail)
	if email == "" {
		return types.CrawlConfig{}, fmt.Errorf("a contact email is required: pass --mailto or write it to %s",
			filepath.Join(viper.GetString("secrets_dir"), secrets.OpenAlexEmail))
	}

	timeout := viper.GetDuration("crawl.timeout")
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	partial := types.PartialPolicy(viper.GetString("crawl.partial"))
	switch partial {
	case "":
		partial = types.PartialDiscard
	case types.PartialDiscard, types.PartialKeep:
	default:
		return types.CrawlConfig{}, fmt.Errorf("unknown partial policy %q (want discard or keep)", partial)
	}

	output := viper.GetString("crawl.output")
	if output == "" {
		output = defaultOutput
	}

	return types.CrawlConfig{
		HTTPConfig:  types.HTTPConfig{Timeout: timeout, UserAgent: defaultUserAgent},
		RetryConfig: types.RetryConfig{MaxAttempts: viper.GetInt("crawl.max_attempts")},
		Endpoint:    viper.GetString("crawl.endpoint"),
		Email:       email,
		PageDelay:   viper.GetDuration("crawl.page_delay"),
		OutputPath:  output,
		Partial:     partial,
		DBPath:      viper.GetString("crawl.db"),
	}, nil
}

// yearRange returns the configured publication years, defaulting to the
// last five years up to now.
func yearRange(now time.Time) (int, int, error) {
	from, to := viper.GetInt("crawl.from"), viper.GetInt("crawl.to")
	if to == 0 {
		to = now.Year()
	}
	if from == 0 {
		from = to - defaultYearSpan
	}
	if from > to {
		return 0, 0, fmt.Errorf("--from %d is after --to %d", from, to)
	}
	return from, to, nil
}

// joinFilters ANDs OpenAlex filter expressions, skipping blanks.
func joinFilters(filters ...string) string {
	var parts []string
	for _, f := range filters {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ",")
}

func loadPlan(mode crawl.Mode) (crawl.Plan, bool, error) {
	path := viper.GetString("crawl.plan")
	if path == "" {
		return crawl.Plan{}, false, nil
	}
	p, err := crawl.LoadPlan(path)
	if err != nil {
		return crawl.Plan{}, false, err
	}
	if p.Mode != mode {
		return crawl.Plan{}, false, fmt.Errorf("plan %s is a %s plan, not %s", path, p.Mode, mode)
	}
	if s := viper.GetString("crawl.search"); s != "" {
		p.SearchTerm = s
	}
	return p, true, nil
}

func groupedPlan(now time.Time) (crawl.Plan, error) {
	p, ok, err := loadPlan(crawl.ModeGrouped)
	if err != nil || ok {
		return p, err
	}

	search := viper.GetString("crawl.search")
	if search == "" {
		return crawl.Plan{}, fmt.Errorf("--search is required")
	}
	from, to, err := yearRange(now)
	if err != nil {
		return crawl.Plan{}, err
	}

	parts := crawl.YearPartitions(from, to)
	for i := range parts {
		parts[i].Filter = joinFilters(parts[i].Filter, viper.GetString("crawl.filter"))
	}

	pageSize := viper.GetInt("crawl.per_page")
	if pageSize == 0 {
		pageSize = defaultGroupedPageSize
	}
	return crawl.Plan{
		Mode:       crawl.ModeGrouped,
		SearchTerm: search,
		GroupBy:    viper.GetString("crawl.group_by"),
		PageSize:   pageSize,
		Partitions: parts,
	}, nil
}

func cursorPlan(now time.Time) (crawl.Plan, error) {
	p, ok, err := loadPlan(crawl.ModeCursor)
	if err != nil || ok {
		return p, err
	}

	search := viper.GetString("crawl.search")
	if search == "" {
		return crawl.Plan{}, fmt.Errorf("--search is required")
	}
	from, to, err := yearRange(now)
	if err != nil {
		return crawl.Plan{}, err
	}

	pageSize := viper.GetInt("crawl.per_page")
	if pageSize == 0 {
		pageSize = defaultCursorPageSize
	}
	return crawl.Plan{
		Mode:       crawl.ModeCursor,
		SearchTerm: search,
		Filter:     joinFilters(openalex.YearRangeFilter(from, to), viper.GetString("crawl.filter")),
		PageSize:   pageSize,
		Fields:     viper.GetStringSlice("crawl.select"),
	}, nil
}

func runCrawlGrouped(cmd *cobra.Command, args []string) error {
	cfg, err := crawlConfig(defaultGroupedOutput)
	if err != nil {
		return err
	}
	plan, err := groupedPlan(time.Now())
	if err != nil {
		return err
	}
	return crawlGrouped(cmd.Context(), os.Stdout, cfg, plan)
}

func runCrawlCursor(cmd *cobra.Command, args []string) error {
	cfg, err := crawlConfig(defaultCursorOutput)
	if err != nil {
		return err
	}
	plan, err := cursorPlan(time.Now())
	if err != nil {
		return err
	}
	return crawlCursor(cmd.Context(), os.Stdout, cfg, plan)
}

func newEngine(cfg types.CrawlConfig, out io.Writer) *crawl.Engine {
	client := openalex.NewClient(cfg)
	client.Log = out
	return &crawl.Engine{Fetcher: client, PageDelay: cfg.PageDelay, Out: out}
}

func printBanner(w io.Writer, title string, plan crawl.Plan, scope string) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "OpenAlex %s\n", title)
	fmt.Fprintf(w, "Search Term: '%s' | %s\n", plan.SearchTerm, scope)
	fmt.Fprintln(w, rule)
}

func printSummary(w io.Writer, what string, rows int, output string, header []string, records [][]string) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total rows (%s): %d\n", what, rows)
	fmt.Fprintf(w, "Saved to: %s\n", output)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "\n--- CSV Data Preview (Top %d Rows) ---\n", previewRows)
	table.Preview(w, header, records, previewRows)
	fmt.Fprintln(w, strings.Repeat("-", 38))
}

func partitionScope(plan crawl.Plan) string {
	if len(plan.Partitions) == 0 {
		return "Partitions: none"
	}
	first, last := plan.Partitions[0].Label, plan.Partitions[len(plan.Partitions)-1].Label
	if first == last {
		return "Years: " + first
	}
	return fmt.Sprintf("Years: %s-%s", first, last)
}

func crawlGrouped(ctx context.Context, w io.Writer, cfg types.CrawlConfig, plan crawl.Plan) error {
	printBanner(w, "Cross-Sectional Analysis", plan, partitionScope(plan))

	labels := make([]string, len(plan.Partitions))
	for i, p := range plan.Partitions {
		labels[i] = p.Label
	}
	m := table.NewManifest(string(crawl.ModeGrouped), table.ManifestQuery{
		Search:     plan.SearchTerm,
		GroupBy:    plan.GroupBy,
		PerPage:    plan.PageSize,
		Partitions: labels,
	})

	result, crawlErr := newEngine(cfg, w).Grouped(ctx, plan)
	m.Summary.Rows = len(result.Rows)
	m.Summary.Completed = result.Completed
	m.Summary.Skipped = result.Skipped

	if crawlErr != nil {
		var pe *crawl.PartialError
		keep := errors.As(crawlErr, &pe) && cfg.Partial == types.PartialKeep && len(result.Rows) > 0
		if !keep {
			m.Finish(table.StatusFailed, crawlErr)
			archive(ctx, w, cfg.DBPath, func(ctx context.Context, s *store.Store) error { return s.SaveGroupedRun(ctx, m, nil) })
			return crawlErr
		}
		m.Output = cfg.OutputPath
		m.Finish(table.StatusPartial, crawlErr)
		if err := saveGrouped(ctx, w, cfg, m, result.Rows); err != nil {
			return err
		}
		fmt.Fprintf(w, "Kept %d rows from %d completed partition(s) in %s\n", len(result.Rows), len(result.Completed), cfg.OutputPath)
		return crawlErr
	}

	if len(result.Rows) == 0 {
		m.Finish(table.StatusFailed, errNoRows)
		archive(ctx, w, cfg.DBPath, func(ctx context.Context, s *store.Store) error { return s.SaveGroupedRun(ctx, m, nil) })
		return errNoRows
	}

	m.Output = cfg.OutputPath
	m.Finish(table.StatusSucceeded, nil)
	if err := saveGrouped(ctx, w, cfg, m, result.Rows); err != nil {
		return err
	}
	printSummary(w, "Concept-Year combinations", len(result.Rows), cfg.OutputPath,
		types.GroupedColumns, table.GroupedRecords(result.Rows))
	return nil
}

var errNoRows = errors.New("failed to collect any data for analysis")

func saveGrouped(ctx context.Context, w io.Writer, cfg types.CrawlConfig, m *table.Manifest, rows []types.GroupedRow) error {
	if err := table.WriteGrouped(cfg.OutputPath, rows); err != nil {
		return err
	}
	if err := table.WriteManifest(table.ManifestPath(cfg.OutputPath), m); err != nil {
		return err
	}
	archive(ctx, w, cfg.DBPath, func(ctx context.Context, s *store.Store) error { return s.SaveGroupedRun(ctx, m, rows) })
	return nil
}

func crawlCursor(ctx context.Context, w io.Writer, cfg types.CrawlConfig, plan crawl.Plan) error {
	printBanner(w, "Itemized Crawl", plan, "Filter: "+plan.Filter)

	m := table.NewManifest(string(crawl.ModeCursor), table.ManifestQuery{
		Search:  plan.SearchTerm,
		Filter:  plan.Filter,
		PerPage: plan.PageSize,
	})

	result, crawlErr := newEngine(cfg, w).Cursor(ctx, plan)
	m.Summary.Pages = result.State.PagesFetched
	if result.State.TotalExpected >= 0 {
		m.Summary.Expected = result.State.TotalExpected
	}
	if crawlErr != nil {
		m.Finish(table.StatusFailed, crawlErr)
		archive(ctx, w, cfg.DBPath, func(ctx context.Context, s *store.Store) error { return s.SaveItemizedRun(ctx, m, nil) })
		return crawlErr
	}

	m.Summary.Rows = len(result.Rows)
	m.Output = cfg.OutputPath
	m.Finish(table.StatusSucceeded, nil)

	if err := table.WriteItemized(cfg.OutputPath, result.Rows); err != nil {
		return err
	}
	if err := table.WriteManifest(table.ManifestPath(cfg.OutputPath), m); err != nil {
		return err
	}
	archive(ctx, w, cfg.DBPath, func(ctx context.Context, s *store.Store) error { return s.SaveItemizedRun(ctx, m, result.Rows) })

	printSummary(w, "works", len(result.Rows), cfg.OutputPath,
		types.ItemColumns, table.ItemRecords(result.Rows))
	return nil
}

// archive records the run in the SQLite archive when one is configured. The
// table on disk is authoritative, so archive failures only warn. Interrupted
// runs are still archived.
func archive(ctx context.Context, w io.Writer, dbPath string, save func(context.Context, *store.Store) error) {
	if dbPath == "" {
		return
	}
	s, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open run archive: %v\n", err)
		return
	}
	defer s.Close()
	if err := save(context.WithoutCancel(ctx), s); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not archive run: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Archived run in %s\n", dbPath)
}

// diagnose renders a command error for stderr. Crawl failures name their
// failure class.
func diagnose(err error) string {
	var fe *httputil.FatalError
	if errors.As(err, &fe) {
		return fmt.Sprintf("fatal: %s: %v", fe.Class, err)
	}
	return "error: " + err.Error()
}
